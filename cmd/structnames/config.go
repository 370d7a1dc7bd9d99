package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"structnames/internal/project"
)

var errNoManifest = errors.New("no " + project.ManifestName + " found\nplease pass --config path/to/" + project.ManifestName)

// loadManifest returns the manifest named by --config, or the nearest one
// above the working directory. ok is false when neither exists.
func loadManifest(cmd *cobra.Command) (m *project.Manifest, ok bool, err error) {
	path, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, false, fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		m, err := project.Load(path)
		if err != nil {
			return nil, false, err
		}
		return m, true, nil
	}
	return project.LoadFrom(".")
}

// requireManifest is loadManifest for commands that cannot work without one.
func requireManifest(cmd *cobra.Command) (*project.Manifest, error) {
	m, ok, err := loadManifest(cmd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoManifest
	}
	return m, nil
}

// jobsFor resolves the worker count: --jobs if set, then [load].jobs.
func jobsFor(cmd *cobra.Command, m *project.Manifest) (int, error) {
	flags := cmd.Root().PersistentFlags()
	jobs, err := flags.GetInt("jobs")
	if err != nil {
		return 0, fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if !flags.Changed("jobs") && m != nil {
		jobs = m.Config.Load.Jobs
	}
	if jobs < 0 {
		return 0, fmt.Errorf("--jobs must not be negative, got %d", jobs)
	}
	return jobs, nil
}
