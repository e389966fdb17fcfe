// Command ocrrun is the driver binary: it parses the -ocr:cfg topology
// file, brings a policy domain up through its runlevels, waits for it to
// shut down, and propagates the shutdown/abort code as the process exit
// status (spec §6). It does not run a user main itself: arguments after
// "--" are collected but not passed anywhere.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joeycumines/ocr"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:                   "ocrrun",
		Usage:                  "Open Community Runtime driver",
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "ocr:cfg",
				Usage:   "path to the INI topology configuration file",
				EnvVars: []string{"OCR_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "ocr:version",
				Usage: "print the runtime version and exit",
			},
		},
		// cli.App rejects unknown flags by default, so user args are taken
		// from everything after a literal "--" separator; run collects them
		// but forwards them nowhere.
		ArgsUsage:       "[-- user-args...]",
		SkipFlagParsing: false,
		Action:          run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ocrrun:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Bool("ocr:version") {
		fmt.Println("ocrrun " + ocr.Version)
		return nil
	}

	cfgPath := c.String("ocr:cfg")
	if cfgPath == "" {
		return cli.Exit("missing required -ocr:cfg <file> (or OCR_CONFIG)", 2)
	}

	topo, err := ocr.ParseTopologyConfig(cfgPath)
	if err != nil {
		return cli.Exit(err, 2)
	}

	numWorkers := countComponentsOfType(topo, "COMPTARGET")
	if numWorkers == 0 {
		numWorkers = 1
	}

	pd, err := ocr.NewPolicyDomain(ocr.PolicyDomainConfig{
		Location:     0,
		GuidStrategy: guidStrategyFromTopology(topo),
		NumWorkers:   numWorkers,
	})
	if err != nil {
		return cli.Exit(err, 1)
	}

	ctx := context.Background()
	if err := pd.BringUp(ctx, numWorkers); err != nil {
		return cli.Exit(err, 1)
	}

	userArgs := c.Args().Slice()
	_ = userArgs // not used: ocrrun has no user main to forward them to

	code := pd.Wait()
	os.Exit(code)
	return nil
}

func countComponentsOfType(topo *ocr.TopologyConfig, typ string) int {
	n := 0
	for _, spec := range topo.Components {
		if spec.Type == typ {
			n++
		}
	}
	return n
}

func guidStrategyFromTopology(topo *ocr.TopologyConfig) string {
	for _, spec := range topo.Components {
		if spec.Type == "POLICYDOMAIN" {
			if s, ok := spec.Fields["guid"]; ok {
				return s
			}
		}
	}
	return "counted"
}
