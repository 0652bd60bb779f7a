// Package binfs implements the binary file operations exposed to
// embedded scripts: an existence probe that transfers no bytes, a
// chunked reader over any resolvable locator, and an append-aware
// writer into the private storage root.
//
// Every call is self-contained and synchronous. No handle outlives a
// call and the service keeps no mutable state between calls, so a
// Service may be shared freely between goroutines. Concurrent writers
// to one destination are not serialized.
package binfs

import (
	"log/slog"

	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/DanikLP1/binaryfs/internal/storage"
	"github.com/VictoriaMetrics/metrics"
)

var (
	readBytes  = metrics.NewCounter("binfs_read_bytes_total")
	writeBytes = metrics.NewCounter("binfs_write_bytes_total")
)

func opCounter(op string) *metrics.Counter {
	return metrics.GetOrCreateCounter(`binfs_ops_total{op="` + op + `"}`)
}

func errCounter(op string) *metrics.Counter {
	return metrics.GetOrCreateCounter(`binfs_errors_total{op="` + op + `"}`)
}

type ReadRequest struct {
	Locator   string
	ChunkSize int64
	Offset    int64
	ReadAll   bool
	// Compress asks for an LZ4 block of the bytes read. It is only
	// applied when it makes the result smaller.
	Compress bool
}

type ReadResult struct {
	Data       []byte
	Compressed bool
}

type WriteRequest struct {
	Name    string
	Payload []byte
	Append  bool
	// Compressed marks Payload as an LZ4 block that must expand to
	// exactly OriginalSize bytes before it is written.
	Compressed   bool
	OriginalSize int64
}

type Service struct {
	resolver *locator.Resolver
	store    *storage.Storage
	Logger   *slog.Logger
}

func New(resolver *locator.Resolver, store *storage.Storage, logger *slog.Logger) *Service {
	return &Service{
		resolver: resolver,
		store:    store,
		Logger:   logging.OrDefault(logger).With(slog.String("comp", "binfs")),
	}
}
