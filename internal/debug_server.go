package internal

import (
	"chat-search/infrastructure/storage"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-chi/chi/v5"
)

//go:embed inspect.html
var templatesFS embed.FS

const defaultInspectLimit = 500

type InspectRow struct {
	Key      string
	Kind     string
	At       string
	EntityID string
	Detail   string
}

type RowMapper func(key, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix   string
	Prefixes []string
	Items    []InspectRow
	Stats    map[string]any
}

// DebugServer renders the badger content, one key family at a time.
// It is only started when the logger is at debug level.
type DebugServer struct {
	log      *slog.Logger
	db       *badger.DB
	mapper   RowMapper
	stats    StatsProvider
	prefixes []string
	tmpl     *template.Template
	server   *http.Server
}

func NewDebugServer(log *slog.Logger, db *badger.DB, port int, prefixes []string, mapper RowMapper, stats StatsProvider) *DebugServer {
	d := &DebugServer{
		log:      log,
		db:       db,
		mapper:   mapper,
		stats:    stats,
		prefixes: prefixes,
		tmpl:     template.Must(template.ParseFS(templatesFS, "inspect.html")),
	}
	if d.mapper == nil {
		d.mapper = DefaultMapper
	}
	router := chi.NewRouter()
	router.Get("/inspect", d.inspect)
	d.server = &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return d
}

func (d *DebugServer) Handler() http.Handler {
	return d.server.Handler
}

func (d *DebugServer) Start() {
	go func() {
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Warn("Debug server stopped", "error", err)
		}
	}()
}

func (d *DebugServer) Shutdown(ctx context.Context) error {
	return d.server.Shutdown(ctx)
}

func (d *DebugServer) inspect(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" && len(d.prefixes) > 0 {
		prefix = d.prefixes[0]
	}
	data := PageData{Prefix: prefix, Prefixes: d.prefixes, Stats: make(map[string]any)}
	if d.stats != nil {
		data.Stats = d.stats()
	}

	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(data.Items) < defaultInspectLimit; it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				data.Items = append(data.Items, d.mapper(item.KeyCopy(nil), val))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := d.tmpl.Execute(w, data); err != nil {
		d.log.Warn("Inspect page rendering failed", "error", err)
	}
}

func DefaultMapper(key, val []byte) InspectRow {
	return InspectRow{
		Key:      string(key),
		Kind:     "RAW",
		At:       "-",
		EntityID: "-",
		Detail:   fmt.Sprintf("Size: %d bytes", len(val)),
	}
}

// StorageMapper decodes the entries written by the storage repositories.
func StorageMapper(key, val []byte) InspectRow {
	entry := storage.DescribeEntry(key, val)
	return InspectRow{
		Key:      strings.ToValidUTF8(entry.Key, "?"),
		Kind:     entry.Kind,
		At:       entry.At,
		EntityID: entry.EntityID,
		Detail:   entry.Detail,
	}
}
