package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/DanikLP1/binaryfs/internal/binfs"
	"github.com/DanikLP1/binaryfs/internal/bridge"
	"github.com/DanikLP1/binaryfs/internal/codec"
	"github.com/DanikLP1/binaryfs/internal/config"
	"github.com/DanikLP1/binaryfs/internal/db"
	"github.com/DanikLP1/binaryfs/internal/locator"
	"github.com/DanikLP1/binaryfs/internal/logging"
	"github.com/DanikLP1/binaryfs/internal/storage"
	"github.com/DanikLP1/binaryfs/internal/storage/fsdriver"
	"github.com/VictoriaMetrics/metrics"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "binfs",
		Usage: "Binary file access for embedded wasm guests",
		Commands: []*cli.Command{{
			Name:      "run",
			Usage:     "Run a wasm guest with the binfs bindings installed",
			ArgsUsage: "<guest.wasm> [args...]",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "metrics",
					Usage: "dump counters in Prometheus text format to stderr on exit",
				},
				&cli.BoolFlag{
					Name:  "debug",
					Usage: "run as a debug runtime; direct bindings are not installed",
				},
			},
			Action: runGuest,
		}, {
			Name:      "share",
			Usage:     "Register a file in the content registry and print its content:// locator",
			ArgsUsage: "<path>",
			Action:    share,
		}, {
			Name:      "unshare",
			Usage:     "Drop a content:// locator from the registry; the file itself stays",
			ArgsUsage: "<locator>",
			Action:    unshare,
		}, {
			Name:   "shared",
			Usage:  "List the registry entries of the configured authority",
			Action: shared,
		}, {
			Name:      "stat",
			Usage:     "Print metadata of a locator",
			ArgsUsage: "<locator>",
			Action:    stat,
		}, {
			Name:      "exists",
			Usage:     "Probe one or more locators without reading them",
			ArgsUsage: "<locator>...",
			Action:    exists,
		}, {
			Name:      "cat",
			Usage:     "Read a locator to stdout",
			ArgsUsage: "<locator>",
			Flags: []cli.Flag{
				&cli.Int64Flag{
					Name:  "chunk",
					Usage: "read at most this many bytes; 0 reads to the end",
				},
				&cli.Int64Flag{
					Name:  "offset",
					Usage: "skip this many bytes first",
				},
			},
			Action: cat,
		}, {
			Name:      "put",
			Usage:     "Write a file (or - for stdin) into the private storage root",
			ArgsUsage: "<name> <src>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "append",
					Usage: "append instead of replacing",
				},
				&cli.BoolFlag{
					Name:  "lz4",
					Usage: "ship the payload as an LZ4 block",
				},
			},
			Action: put,
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type env struct {
	cfg config.Config
	log *slog.Logger
	db  *db.DB
	fs  *fsdriver.FS
	svc *binfs.Service
}

func open() (*env, error) {
	cfg := config.New()
	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		JSON:   cfg.LogJSON,
		Output: os.Stderr,
	})

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}
	database, err := db.OpenSQLite(cfg.ContentDB)
	if err != nil {
		return nil, fmt.Errorf("content db: %w", err)
	}

	drv := fsdriver.New(cfg.DataDir)
	svc := binfs.New(
		locator.NewResolver(database, logger),
		storage.NewWithDriver(drv),
		logger,
	)
	return &env{cfg: cfg, log: logger, db: database, fs: drv, svc: svc}, nil
}

func (e *env) Close() { _ = e.db.Close() }

func runGuest(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return errors.New("run: guest path required")
	}
	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()
	if c.Bool("metrics") {
		defer metrics.WritePrometheus(os.Stderr, false)
	}

	ctx := c.Context
	if e.cfg.SweepEvery > 0 {
		e.fs.StartSweeper(ctx, e.cfg.SweepEvery, e.cfg.TmpMaxAge, e.log)
	}

	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)
	wasi_snapshot_preview1.MustInstantiate(ctx, rt)

	var target bridge.Runtime = rt
	if c.Bool("debug") {
		target = bridge.Debug(rt)
	}
	if _, err := bridge.NewInstaller(e.svc, e.log).Install(ctx, target); err != nil {
		// guests that import the bindings will fail to link below
		e.log.Warn("bridge.unavailable", "err", err)
	}

	bin, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	modCfg := wazero.NewModuleConfig().
		WithName(filepath.Base(path)).
		WithArgs(append([]string{path}, c.Args().Tail()...)...).
		WithStdin(os.Stdin).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	mod, err := rt.InstantiateWithConfig(ctx, bin, modCfg)
	if err != nil {
		var exit *sys.ExitError
		if errors.As(err, &exit) && exit.ExitCode() == 0 {
			return nil
		}
		return fmt.Errorf("run %s: %w", path, err)
	}
	return mod.Close(ctx)
}

func share(c *cli.Context) error {
	path, err := filepath.Abs(c.Args().First())
	if err != nil || c.Args().First() == "" {
		return errors.New("share: path required")
	}
	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("share %s: not a regular file", path)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return err
	}
	doc, err := e.db.CreateDocument(c.Context, e.cfg.ContentAuthority, path, filepath.Base(path), mt.String(), fi.Size())
	if err != nil {
		return err
	}
	e.log.Info("share.ok", "id", doc.ID, "path", path, "mime", doc.MimeType)
	fmt.Println(locator.Content(doc.Authority, doc.ID).String())
	return nil
}

func unshare(c *cli.Context) error {
	loc, err := locator.Parse(c.Args().First())
	if err != nil {
		return err
	}
	if loc.Scheme != locator.SchemeContent {
		return fmt.Errorf("unshare %s: not a content locator", c.Args().First())
	}
	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()
	return e.db.DeleteDocument(c.Context, loc.Authority, loc.ID)
}

func shared(c *cli.Context) error {
	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()

	docs, err := e.db.ListDocuments(c.Context, e.cfg.ContentAuthority)
	if err != nil {
		return err
	}
	for _, d := range docs {
		fmt.Printf("%s\t%s\t%s\t%s\n",
			locator.Content(d.Authority, d.ID).String(),
			d.MimeType,
			humanize.Bytes(uint64(d.Size)),
			d.Path,
		)
	}
	return nil
}

func stat(c *cli.Context) error {
	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()

	entry, err := e.svc.Stat(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	fmt.Printf("name:  %s\n", entry.DisplayName)
	fmt.Printf("mime:  %s\n", entry.MimeType)
	fmt.Printf("size:  %s (%d bytes)\n", humanize.Bytes(uint64(entry.Size)), entry.Size)
	fmt.Printf("path:  %s\n", entry.Path)
	return nil
}

func exists(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("exists: at least one locator required")
	}
	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()

	locs := c.Args().Slice()
	out := make([]string, len(locs))
	d := bridge.NewDispatcher(c.Context, e.svc, e.cfg.AsyncWorkers, e.log)
	for i, raw := range locs {
		d.Exists(raw, func(ok bool, err error) {
			switch {
			case err != nil:
				out[i] = "error: " + err.Error()
			case ok:
				out[i] = "present"
			default:
				out[i] = "absent"
			}
		})
	}
	d.Wait()
	for i, raw := range locs {
		fmt.Printf("%s\t%s\n", out[i], raw)
	}
	return nil
}

func cat(c *cli.Context) error {
	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()

	chunk := c.Int64("chunk")
	res, err := e.svc.Read(c.Context, binfs.ReadRequest{
		Locator:   c.Args().First(),
		ChunkSize: chunk,
		Offset:    c.Int64("offset"),
		ReadAll:   chunk == 0,
	})
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(res.Data)
	return err
}

func put(c *cli.Context) error {
	if c.NArg() != 2 {
		return errors.New("put: want <name> <src>")
	}
	name, src := c.Args().Get(0), c.Args().Get(1)

	var data []byte
	var err error
	if src == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return err
	}

	e, err := open()
	if err != nil {
		return err
	}
	defer e.Close()

	req := binfs.WriteRequest{Name: name, Payload: data, Append: c.Bool("append")}
	if c.Bool("lz4") {
		block, ok, err := codec.MaybeCompress(data)
		if err != nil {
			return err
		}
		if ok {
			req.Payload, req.Compressed, req.OriginalSize = block, true, int64(len(data))
		}
	}
	loc, err := e.svc.Write(c.Context, req)
	if err != nil {
		return err
	}
	fmt.Println(loc)
	return nil
}
