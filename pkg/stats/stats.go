// Package stats builds frequency distributions of node attributes over the
// canonical node records.
package stats

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/storacha/shockaudit/pkg/counter"
	"github.com/storacha/shockaudit/pkg/node"
)

var log = logging.Logger("stats")

// Attribute names one frequency distribution.
type Attribute string

const (
	CreatedOn    Attribute = "created_on"
	LastModified Attribute = "last_modified"
	Owner        Attribute = "owner"
	Filename     Attribute = "filename"
	FileSuffix   Attribute = "filesuffix"
	FileSize     Attribute = "filesize"
)

// Attributes lists every distribution, in export order.
var Attributes = []Attribute{CreatedOn, LastModified, Owner, Filename, FileSuffix, FileSize}

const (
	// PublicOwner is the owner value of publicly owned nodes. It is counted
	// literally rather than looked up.
	PublicOwner = "public"
	// UUIDFilename replaces file names that are themselves node-style UUIDs.
	UUIDFilename = "FILENAME_IS_UUID"

	monthLayout = "2006-01"
)

// UserDirectory resolves user UUIDs to user names.
type UserDirectory interface {
	Username(uuid string) (string, bool)
}

// Users is an in-memory UserDirectory.
type Users map[string]string

func (u Users) Username(uuid string) (string, bool) {
	name, ok := u[uuid]
	return name, ok
}

// OutputFile returns the name of the exported file for attr.
func OutputFile(attr Attribute) string {
	return "freq_dist." + string(attr) + ".txt"
}

// TablesConfig configures where counter tables are stored.
type TablesConfig struct {
	// Dir holds one subdirectory per table. Ignored when InMemory is true.
	Dir      string
	InMemory bool
}

// OpenTables opens a fresh counter table for every attribute. Tables left over
// from previous runs are discarded.
func OpenTables(cfg TablesConfig) (map[Attribute]*counter.Table, error) {
	tables := make(map[Attribute]*counter.Table, len(Attributes))
	for _, attr := range Attributes {
		table, err := counter.OpenFresh(counter.Config{
			Path:     filepath.Join(cfg.Dir, "db_"+string(attr)),
			InMemory: cfg.InMemory,
		})
		if err != nil {
			CloseTables(tables)
			return nil, fmt.Errorf("opening %s table: %w", attr, err)
		}
		tables[attr] = table
	}
	return tables, nil
}

// CloseTables closes every table, returning the joined errors.
func CloseTables(tables map[Attribute]*counter.Table) error {
	var errs []error
	for attr, table := range tables {
		if err := table.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s table: %w", attr, err))
		}
	}
	return errors.Join(errs...)
}

// Aggregator counts attribute values of node records into counter tables.
type Aggregator struct {
	tables map[Attribute]*counter.Table
	users  UserDirectory
}

// NewAggregator returns an Aggregator writing into tables, which must hold a
// table for every attribute in Attributes.
func NewAggregator(tables map[Attribute]*counter.Table, users UserDirectory) (*Aggregator, error) {
	for _, attr := range Attributes {
		if tables[attr] == nil {
			return nil, fmt.Errorf("missing %s table", attr)
		}
	}
	if users == nil {
		users = Users{}
	}
	return &Aggregator{tables: tables, users: users}, nil
}

// Values returns the value rec contributes to each distribution.
func (a *Aggregator) Values(rec *node.Record) map[Attribute]string {
	name := rec.File.Name
	if node.IsCanonicalV4(name) {
		name = UUIDFilename
	}
	return map[Attribute]string{
		CreatedOn:    rec.CreatedOn.UTC().Format(monthLayout),
		LastModified: rec.LastModified.UTC().Format(monthLayout),
		Owner:        a.owner(rec.ACL.Owner),
		Filename:     name,
		FileSuffix:   Extension(name),
		FileSize:     strconv.FormatInt(rec.File.Size, 10),
	}
}

func (a *Aggregator) owner(uuid string) string {
	if uuid == PublicOwner {
		return PublicOwner
	}
	name, ok := a.users.Username(uuid)
	if !ok {
		return ""
	}
	return name
}

// Ingest counts one record in every distribution.
func (a *Aggregator) Ingest(rec *node.Record) error {
	values := a.Values(rec)
	for _, attr := range Attributes {
		if err := a.tables[attr].Increment(values[attr]); err != nil {
			return fmt.Errorf("counting %s of node %s: %w", attr, rec.ID, err)
		}
	}
	return nil
}

// Export writes the distribution of attr to w as tab-separated key and count
// lines in ascending key order.
func (a *Aggregator) Export(attr Attribute, w io.Writer) error {
	table, ok := a.tables[attr]
	if !ok {
		return fmt.Errorf("unknown attribute %q", attr)
	}
	for entry, err := range table.Scan() {
		if err != nil {
			return fmt.Errorf("scanning %s table: %w", attr, err)
		}
		if _, err := fmt.Fprintf(w, "%s\t%d\n", entry.Key, entry.Count); err != nil {
			return fmt.Errorf("writing %s distribution: %w", attr, err)
		}
	}
	return nil
}

// ExportAll writes every distribution to its own file in dir. Files are
// written concurrently, one goroutine per table.
func (a *Aggregator) ExportAll(ctx context.Context, fsys afero.Fs, dir string) error {
	if err := fsys.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, attr := range Attributes {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, OutputFile(attr))
			f, err := fsys.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			if err := a.Export(attr, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("closing %s: %w", path, err)
			}
			log.Debugf("wrote %s", path)
			return nil
		})
	}
	return g.Wait()
}

// Extension returns the extension of a file name: the suffix of its base name
// starting at the last dot. Dots leading the base name do not start an
// extension, so ".bashrc" and "..." have none.
func Extension(name string) string {
	base := name[strings.LastIndexByte(name, '/')+1:]
	dot := strings.LastIndexByte(base, '.')
	if dot <= 0 {
		return ""
	}
	if strings.Trim(base[:dot], ".") == "" {
		return ""
	}
	return base[dot:]
}
