/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command redex-opt runs the optimization pipeline over a program stored in
// assembly (.dasm) or snapshot (.rxs) form.
//
//	redex-opt [-config redex.toml] [-passes A,B] [-workers N] [-o out.rxs] in.dasm
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yimq/redex"
	"github.com/yimq/redex/internal/dex"
	"github.com/yimq/redex/internal/dex/asm"
	"github.com/yimq/redex/internal/opts"
	"github.com/yimq/redex/internal/snapshot"
)

const (
	_ExtSnapshot = ".rxs"
)

type _Flags struct {
	config  string
	passes  string
	output  string
	format  string
	workers int
	testing bool
	verbose bool
	report  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	var fl _Flags
	fs := flag.NewFlagSet("redex-opt", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&fl.config, "config", "", "TOML configuration bundle")
	fs.StringVar(&fl.passes, "passes", "", "comma separated pipeline, overrides the configuration")
	fs.StringVar(&fl.output, "o", "", "output file, standard output if empty")
	fs.StringVar(&fl.format, "format", "", "output format: text or snapshot (default: from the output name)")
	fs.IntVar(&fl.workers, "workers", 0, "methods processed in parallel")
	fs.BoolVar(&fl.testing, "testing", false, "skip invariant checks between passes")
	fs.BoolVar(&fl.verbose, "v", false, "log every rewritten method")
	fs.BoolVar(&fl.report, "report", false, "print the pass report")

	/* exactly one input */
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: redex-opt [flags] <input>")
		fs.PrintDefaults()
		return 2
	}

	/* the logger */
	log := newLogger(stderr, fl.verbose)
	defer func() { _ = log.Sync() }()

	/* run the pipeline */
	if err := optimize(&fl, fs.Arg(0), stdout, stderr, log); err != nil {
		log.Error("optimization failed", zap.Error(err))
		return 1
	}
	return 0
}

func newLogger(w io.Writer, verbose bool) *zap.Logger {
	lv := zapcore.WarnLevel
	if verbose {
		lv = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), lv))
}

func optimize(fl *_Flags, input string, stdout io.Writer, stderr io.Writer, log *zap.Logger) error {
	conf := opts.NewConfig()

	/* configuration bundle */
	if fl.config != "" {
		var err error
		if conf, err = redex.LoadConfig(fl.config); err != nil {
			return err
		}
	}

	/* command line overrides */
	if fl.passes != "" {
		conf.Passes = strings.Split(fl.passes, ",")
	}
	if fl.workers < 0 {
		return fmt.Errorf("invalid worker count: %d", fl.workers)
	} else if fl.workers != 0 {
		conf.Workers = fl.workers
	}
	if fl.testing {
		conf.TestingMode = true
	}

	/* load the program */
	reg, scope, err := load(input)
	if err != nil {
		return err
	}

	/* optimize */
	rep, err := redex.Optimize(reg, scope, redex.WithConfig(conf), redex.WithLogger(log))
	if err != nil {
		return err
	}
	if fl.report {
		fmt.Fprint(stderr, rep.String())
	}

	/* write the result */
	return save(fl, reg, scope, stdout)
}

func load(fn string) (*dex.Registry, dex.Scope, error) {
	buf, err := os.ReadFile(fn)
	if err != nil {
		return nil, nil, err
	}
	if filepath.Ext(fn) == _ExtSnapshot {
		return snapshot.Decode(buf)
	}
	reg := dex.NewRegistry()
	scope, err := asm.Parse(reg, bytes.NewReader(buf))
	return reg, scope, err
}

func save(fl *_Flags, reg *dex.Registry, scope dex.Scope, stdout io.Writer) error {
	var buf []byte
	format := fl.format

	/* pick the format from the output name */
	if format == "" {
		if filepath.Ext(fl.output) == _ExtSnapshot {
			format = "snapshot"
		} else {
			format = "text"
		}
	}

	/* encode */
	switch format {
	case "text":
		buf = []byte(asm.Sprint(reg, scope))
	case "snapshot":
		var err error
		if buf, err = snapshot.Encode(reg, scope); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	/* write */
	if fl.output == "" {
		_, err := stdout.Write(buf)
		return err
	}
	return os.WriteFile(fl.output, buf, 0644)
}
