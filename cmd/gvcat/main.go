// Copyright 2018 The Solid Core Data Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// gvcat reads values in markup form and pretty-prints them. Each file
// argument holds one value; "-" or no arguments reads standard input.
// Files are parsed concurrently and printed in argument order.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/solidcoredata/variant"
	"github.com/solidcoredata/variant/internal/config"
	"github.com/solidcoredata/variant/internal/log"
	"github.com/solidcoredata/variant/internal/start"
	"github.com/solidcoredata/variant/markup"
)

var cfg = config.FromEnv()
var logger = log.Setup("gvcat", cfg.LogLevel)

func main() {
	app := cli.NewApp()
	app.Name = "gvcat"
	app.Usage = "parse markup-form values and pretty-print them"
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "tabstop, t",
			Usage: "indentation width",
			Value: cfg.TabStop,
		},
		cli.BoolFlag{
			Name:  "compact, c",
			Usage: "print without newlines or indentation",
		},
	}
	app.Action = catAction

	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func catAction(c *cli.Context) error {
	files := c.Args()
	if len(files) == 0 {
		files = []string{"-"}
	}

	values := make([]*variant.Value, len(files))
	defer func() {
		for _, v := range values {
			if v != nil {
				v.Unref()
			}
		}
	}()

	runs := make([]start.Func, len(files))
	for i, name := range files {
		i, name := i, name
		runs[i] = func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := parseFile(name)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		}
	}

	return start.Run(context.Background(), 5*time.Second, func(ctx context.Context) error {
		if err := start.RunAll(ctx, runs...); err != nil {
			return err
		}
		newlines := !c.Bool("compact") && !cfg.Compact
		tabstop := c.Int("tabstop")
		if !newlines {
			tabstop = 0
		}
		for i, v := range values {
			logger.Debugf("%s: %s, %d bytes", files[i], v.Signature(), v.Size())
			fmt.Print(markup.Print(v, newlines, tabstop))
			if !newlines {
				fmt.Println()
			}
		}
		return nil
	})
}

func parseFile(name string) (*variant.Value, error) {
	if name == "-" {
		return markup.Parse(os.Stdin)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", name)
	}
	defer f.Close()
	v, err := markup.Parse(f)
	return v, errors.Wrapf(err, "parsing %s", name)
}
