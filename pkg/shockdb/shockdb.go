// Package shockdb reads canonical node records and users from the Shock
// MongoDB database.
package shockdb

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/otel"

	"github.com/storacha/shockaudit/pkg/node"
)

var (
	log    = logging.Logger("shockdb")
	tracer = otel.Tracer("shockdb")
)

const (
	NodesCollection = "Nodes"
	UsersCollection = "Users"
)

// Config holds the connection settings of the database.
type Config struct {
	// Host is host:port, or a full mongodb:// URI.
	Host     string
	Database string
	Username string
	Password string
	// Timeout bounds connecting and each round trip to the server.
	Timeout time.Duration
}

// URI returns the connection string for the configured host.
func (c Config) URI() string {
	if strings.HasPrefix(c.Host, "mongodb://") || strings.HasPrefix(c.Host, "mongodb+srv://") {
		return c.Host
	}
	return "mongodb://" + c.Host
}

// ConnectivityError indicates that the database could not be reached or
// failed while being read.
type ConnectivityError struct {
	Op   string
	Host string
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("shock database %s (host=%s): %s", e.Op, e.Host, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// RecordError indicates a single node record that could not be decoded. The
// remaining records can still be read.
type RecordError struct {
	ID  string
	Err error
}

func (e *RecordError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("undecodable node record: %s", e.Err)
	}
	return fmt.Sprintf("undecodable node record %s: %s", e.ID, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Client reads from a Shock database.
type Client struct {
	cfg    Config
	client *mongo.Client
	db     *mongo.Database
}

// Connect opens a connection to the database and pings it. Credentials are
// used only when both a username and a password are configured.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	ctx, span := tracer.Start(ctx, "connect")
	defer span.End()

	opts := options.Client().ApplyURI(cfg.URI())
	if cfg.Timeout > 0 {
		opts.SetConnectTimeout(cfg.Timeout).SetServerSelectionTimeout(cfg.Timeout)
	}
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetAuth(options.Credential{
			Username:   cfg.Username,
			Password:   cfg.Password,
			AuthSource: cfg.Database,
		})
	} else {
		log.Infof("no credentials configured, connecting to %s without authentication", cfg.Host)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &ConnectivityError{Op: "connect", Host: cfg.Host, Err: err}
	}

	pingCtx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &ConnectivityError{Op: "ping", Host: cfg.Host, Err: err}
	}

	log.Debugf("connected to %s, database %s", cfg.Host, cfg.Database)
	return &Client{cfg: cfg, client: client, db: client.Database(cfg.Database)}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

type user struct {
	UUID     string `bson:"uuid"`
	Username string `bson:"username"`
}

// Users returns the user directory, mapping user UUIDs to user names.
func (c *Client) Users(ctx context.Context) (map[string]string, error) {
	ctx, span := tracer.Start(ctx, "users")
	defer span.End()

	cur, err := c.db.Collection(UsersCollection).Find(ctx, bson.D{})
	if err != nil {
		return nil, &ConnectivityError{Op: "find users", Host: c.cfg.Host, Err: err}
	}
	defer cur.Close(ctx)

	users := make(map[string]string)
	for cur.Next(ctx) {
		var u user
		if err := cur.Decode(&u); err != nil {
			log.Warnf("skipping undecodable user: %s", err)
			continue
		}
		users[u.UUID] = u.Username
	}
	if err := cur.Err(); err != nil {
		return nil, &ConnectivityError{Op: "read users", Host: c.cfg.Host, Err: err}
	}
	return users, nil
}

// NodeFilter selects the node records modified at or after since. A zero
// since selects every record.
func NodeFilter(since time.Time) bson.D {
	if since.IsZero() {
		return bson.D{}
	}
	return bson.D{{Key: "last_modified", Value: bson.D{{Key: "$gte", Value: since}}}}
}

// Nodes iterates over the canonical node records, optionally only those
// modified at or after since. Undecodable records are yielded as
// *RecordError and iteration continues. Failures to read from the server are
// yielded as *ConnectivityError and end the iteration.
func (c *Client) Nodes(ctx context.Context, since time.Time) iter.Seq2[*node.Record, error] {
	return func(yield func(*node.Record, error) bool) {
		cur, err := c.db.Collection(NodesCollection).Find(ctx, NodeFilter(since))
		if err != nil {
			yield(nil, &ConnectivityError{Op: "find nodes", Host: c.cfg.Host, Err: err})
			return
		}
		defer cur.Close(context.Background())

		for cur.Next(ctx) {
			rec, err := decodeRecord(cur.Current)
			if !yield(rec, err) {
				return
			}
		}
		if err := cur.Err(); err != nil {
			yield(nil, &ConnectivityError{Op: "read nodes", Host: c.cfg.Host, Err: err})
		}
	}
}

func decodeRecord(raw bson.Raw) (*node.Record, error) {
	var rec node.Record
	if err := bson.Unmarshal(raw, &rec); err != nil {
		id, _ := raw.Lookup("id").StringValueOK()
		return nil, &RecordError{ID: id, Err: err}
	}
	if err := rec.Validate(); err != nil {
		return nil, &RecordError{ID: rec.ID, Err: err}
	}
	return &rec, nil
}

// Close disconnects from the database.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return &ConnectivityError{Op: "disconnect", Host: c.cfg.Host, Err: err}
	}
	return nil
}
