package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zulandar/atila/internal/config"
	"github.com/zulandar/atila/internal/normalize"
)

func newNormalizeCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
	)

	cmd := &cobra.Command{
		Use:   "normalize <source> <file>",
		Short: "Map an external tracker payload into ATILA's schema",
		Long: `Reads a JSON payload exported from an external tracker (github, jira,
azure_devops, or any platform in the configured map) and prints the normalized
record. Use "-" to read from stdin. With --project the record is imported as a
ticket; re-importing the same external id updates it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(cmd, configPath, args[0], args[1], projectID)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to ATILA config file")
	cmd.Flags().UintVar(&projectID, "project", 0, "import the record into this project id")
	return cmd
}

func runNormalize(cmd *cobra.Command, configPath, source, file string, projectID uint) error {
	raw, err := readPayload(cmd.InOrStdin(), file)
	if err != nil {
		return err
	}

	// Printing a record needs no database, and works without a config file.
	cfg := config.Default()
	if projectID != 0 || fileExists(configPath) {
		if cfg, err = config.Load(configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	platforms, err := normalize.LoadPlatformMap(cfg.Normalize.PlatformMap)
	if err != nil {
		return err
	}

	rec, err := normalize.Normalize(source, raw, platforms, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rec); err != nil {
		return err
	}
	if projectID == 0 {
		return nil
	}

	a, err := openApp(configPath)
	if err != nil {
		return err
	}
	t, created, err := a.svc.ImportTicket(context.Background(), rec.TicketOpts(projectID))
	if err != nil {
		return err
	}
	verb := "Updated"
	if created {
		verb = "Imported"
	}
	fmt.Fprintf(out, "%s ticket %d (display %d)\n", verb, t.ID, t.DisplayScore)
	return nil
}

// readPayload decodes a JSON object from file, or from in when file is "-".
func readPayload(in io.Reader, file string) (map[string]any, error) {
	var data []byte
	var err error
	if file == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse payload %s: %w", file, err)
	}
	return raw, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
