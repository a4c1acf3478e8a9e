// Command lse is the CLI front-end for LibreSolvE: it reads a `.lse`
// source file, runs it through the core pipeline, and prints the
// resulting variable report, integral table, and plot summary.
package main

//----------------------------------------------------------------------
// This file is part of Dynamo.
// Copyright (C) 2020-2021 Bernd Fix
//
// Dynamo is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// Dynamo is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/libresolve/libresolve/config"
	"github.com/libresolve/libresolve/errs"
	"github.com/libresolve/libresolve/logging"
	"github.com/libresolve/libresolve/lseparse"
	"github.com/libresolve/libresolve/orchestrator"
	"github.com/libresolve/libresolve/store"
)

// exitUsage is the code returned for argument/file errors (spec.md §6).
const exitUsage = 2

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "lse <source.lse>",
		Short:         "Solve a LibreSolvE equation system",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML settings file (solver, auto-step)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Emit Debug-level log output")
	cmd.SetArgs(args)

	exitCode := exitUsage
	cmd.RunE = func(_ *cobra.Command, cmdArgs []string) error {
		code, err := solve(cmdArgs[0], configPath, verbose)
		exitCode = code
		return err
	}

	if err := cmd.Execute(); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		fmt.Fprintln(os.Stderr, "lse:", err)
		if exitCode == 0 {
			exitCode = exitUsage
		}
	}
	return exitCode
}

// solve runs the pipeline for one source file and prints its results,
// returning the process exit code spec.md §6 assigns.
func solve(path, configPath string, verbose bool) (int, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return exitUsage, err
		}
		cfg = loaded
	}

	f, err := os.Open(path)
	if err != nil {
		return exitUsage, err
	}
	defer f.Close()

	log := logging.NewLogrus()
	if verbose {
		log.L.SetLevel(logrus.DebugLevel)
	}

	prog, err := lseparse.Parse(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lse: %s: %v\n", path, err)
		printStatus(errs.StatusParseError)
		return 1, nil
	}

	settings := orchestrator.Settings{
		Solver:          cfg.Solver.ToSolverSettings(),
		DefaultAutoStep: cfg.AutoStep.ToAdaptiveControls(),
	}
	o := orchestrator.New(store.New(), log, settings)
	result := o.Run(prog)

	printReport(result)
	if result.Status == errs.StatusConverged || result.Status == errs.StatusConsistent {
		return 0, nil
	}
	return 1, nil
}

func printReport(r orchestrator.Report) {
	printStatus(r.Status)
	fmt.Print(r.Variables.String())

	for _, w := range r.Warnings {
		fmt.Fprintln(os.Stderr, "warning:", w)
	}

	if len(r.Table.ColumnNames) > 0 {
		fmt.Println()
		fmt.Println(headerRow(r.Table.ColumnNames))
		for i := 0; i < r.Table.Len(); i++ {
			fmt.Println(rowString(r.Table.Row(i)))
		}
	}

	for _, p := range r.Plots {
		names := make([]string, 0, len(p.Series))
		for _, s := range p.Series {
			names = append(names, s.Name)
		}
		fmt.Printf("\nplot %q: %d series (%v)\n", p.Settings.Title, len(p.Series), names)
	}
}

func printStatus(status errs.Status) {
	fmt.Printf("Status: %s\n", status)
}

func headerRow(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += "\t"
		}
		out += n
	}
	return out
}

func rowString(cells []string) string {
	out := ""
	for i, c := range cells {
		if i > 0 {
			out += "\t"
		}
		out += c
	}
	return out
}
