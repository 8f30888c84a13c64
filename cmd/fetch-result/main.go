// Command fetch-result downloads the plot for a file ID from a toolbox
// server, optionally uploading the CSV first.
//
//	fetch-result -server http://localhost:8000 -id <file_id> [-o plot.png]
//	fetch-result -server http://localhost:8000 -upload scenes.csv [-o plot.png]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/digital-toolbox/internal/api"
	"github.com/banshee-data/digital-toolbox/internal/fsutil"
	"github.com/banshee-data/digital-toolbox/internal/httputil"
	"github.com/banshee-data/digital-toolbox/internal/security"
)

type options struct {
	server   string
	id       string
	upload   string
	output   string
	wait     bool
	interval time.Duration
	timeout  time.Duration
}

func main() {
	var o options
	flag.StringVar(&o.server, "server", "http://localhost:8000", "Toolbox server base URL")
	flag.StringVar(&o.id, "id", "", "File ID returned by an earlier upload")
	flag.StringVar(&o.upload, "upload", "", "Upload this CSV first and fetch its result")
	flag.StringVar(&o.output, "o", "", "Output PNG path (defaults to <file_id>.png)")
	flag.BoolVar(&o.wait, "wait", true, "Poll until the result is ready")
	flag.DurationVar(&o.interval, "interval", time.Second, "Polling interval")
	flag.DurationVar(&o.timeout, "timeout", 2*time.Minute, "Give up after this long")
	flag.Parse()

	if (o.id == "") == (o.upload == "") {
		fmt.Fprintln(os.Stderr, "Please enter a valid file ID, or a file to upload.")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	path, err := run(ctx, api.NewClient(o.server, httputil.NewStandardClient(nil)), fsutil.OSFileSystem{}, o)
	switch {
	case errors.Is(err, api.ErrNotReady), errors.Is(err, api.ErrNotFound):
		log.Fatalf("Result not ready yet or file_id not found: %v", err)
	case err != nil:
		log.Fatal(err)
	}
	log.Printf("saved %s", path)
}

func run(ctx context.Context, c *api.Client, fsys fsutil.FileSystem, o options) (string, error) {
	id := o.id
	if o.upload != "" {
		f, err := fsys.Open(o.upload)
		if err != nil {
			return "", err
		}
		up, err := c.Upload(ctx, filepath.Base(o.upload), f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", o.upload, err)
		}
		log.Printf("uploaded %s as %s", up.Filename, up.FileID)
		id = up.FileID
	}

	var (
		png []byte
		err error
	)
	if o.wait {
		interval := o.interval
		if interval <= 0 {
			interval = time.Second
		}
		png, err = c.WaitResult(ctx, id, interval)
	} else {
		png, err = c.Result(ctx, id)
	}
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", id, err)
	}

	out := o.output
	if out == "" {
		if out, err = security.JoinWithin(".", id+".png"); err != nil {
			return "", err
		}
	}
	if err := fsys.WriteFile(out, png, 0o644); err != nil {
		return "", err
	}
	return out, nil
}
