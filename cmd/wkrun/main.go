// wkrun integrates a configured lumped outlet model over a prescribed flow
// waveform and writes the resulting pressure trace. It is the standalone
// counterpart of running the boundary condition inside a flow solver, useful
// for checking parameter sets before a full simulation.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cardioflow/windkessel/config"
	"github.com/cardioflow/windkessel/driver"
)

var (
	configPath     string
	flowPath       string
	outPath        string
	plotPath       string
	checkpointPath string
	restorePath    string
	outletName     string
	outerIters     int
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "wkrun",
	Short: "Integrate a lumped outlet boundary model over a flow waveform",
	Long: `wkrun reads an outlet configuration (TOML) and a flow waveform (CSV:
time,flow), integrates the configured Windkessel or pole-residue model over
the waveform, and writes the pressure trace. Each timestep is offered to the
model --outer times to mirror a host solver's nonlinear iterations; the
update gate guarantees the extra calls do not disturb the trajectory.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "outlet configuration file (required)")
	rootCmd.Flags().StringVar(&flowPath, "flow", "", "flow waveform CSV (required)")
	rootCmd.Flags().StringVar(&outPath, "out", "", "pressure trace CSV output (default stdout)")
	rootCmd.Flags().StringVar(&plotPath, "plot", "", "optional pressure plot image (png/pdf/svg)")
	rootCmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "write outlet state here after the run")
	rootCmd.Flags().StringVar(&restorePath, "restore", "", "restore outlet state from this checkpoint before the run")
	rootCmd.Flags().StringVar(&outletName, "outlet", "", "outlet name to run (default: first in config)")
	rootCmd.Flags().IntVar(&outerIters, "outer", 1, "calls per timestep (outer nonlinear iterations)")
	rootCmd.Flags().BoolVar(&verbose, "v", false, "debug logging")
	_ = rootCmd.MarkFlagRequired("config")
	_ = rootCmd.MarkFlagRequired("flow")
}

func run(cmd *cobra.Command, args []string) error {
	log := logrus.StandardLogger()
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	outs, err := cfg.BuildAll(log)
	if err != nil {
		return err
	}

	o := outs[0]
	if outletName != "" {
		found := false
		for _, cand := range outs {
			if cand.Name == outletName {
				o, found = cand, true
				break
			}
		}
		if !found {
			return fmt.Errorf("no outlet named %q in %s", outletName, configPath)
		}
	}

	if restorePath != "" {
		f, err := os.Open(restorePath)
		if err != nil {
			return err
		}
		err = o.Restore(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	ff, err := os.Open(flowPath)
	if err != nil {
		return err
	}
	waveform, err := driver.ReadWaveform(ff)
	ff.Close()
	if err != nil {
		return err
	}

	res, err := driver.Run(o, waveform, outerIters, log)
	if err != nil {
		return err
	}

	out := os.Stdout
	if outPath != "" {
		out, err = os.Create(outPath)
		if err != nil {
			return err
		}
		defer out.Close()
	}
	if err := res.WriteCSV(out); err != nil {
		return err
	}

	if plotPath != "" {
		if err := res.Plot(plotPath, o.Name); err != nil {
			return err
		}
	}

	if checkpointPath != "" {
		cf, err := os.Create(checkpointPath)
		if err != nil {
			return err
		}
		err = o.Checkpoint(cf)
		if cerr := cf.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
	}

	dia, sys, mean := res.Summary()
	log.WithFields(logrus.Fields{
		"outlet":    o.Name,
		"diastolic": dia,
		"systolic":  sys,
		"mean":      mean,
	}).Info("pressure summary")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
