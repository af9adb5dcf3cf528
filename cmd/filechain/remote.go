package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/jmerrifield20/filechain/internal/ledger"
	"github.com/jmerrifield20/filechain/pkg/client"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// ── upload ───────────────────────────────────────────────────────────────────

var uploadCmd = &cobra.Command{
	Use:   "upload <file> [file] ...",
	Short: "Upload files to a filechain server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		ctx := context.Background()

		rows := pterm.TableData{{"IDX", "LABEL", "CID"}}
		var failed int
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				pterm.Error.Printfln("%s: %v", path, err)
				failed++
				continue
			}
			e, err := c.Upload(ctx, filepath.Base(path), data)
			if err != nil {
				pterm.Error.Printfln("%s: %v", path, err)
				failed++
				continue
			}
			rows = append(rows, []string{strconv.Itoa(e.Index), e.Label, e.ContentID})
		}

		if len(rows) > 1 {
			if err := pterm.DefaultTable.WithHasHeader().WithData(rows).Render(); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d uploads failed", failed, len(args))
		}
		return nil
	},
}

// ── ls ───────────────────────────────────────────────────────────────────────

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List ledger entries on a filechain server",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		entries, err := c.Entries(context.Background())
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			pterm.Info.Println("ledger is empty")
			return nil
		}

		rows := pterm.TableData{{"IDX", "CREATED", "LABEL", "CID", "DIGEST"}}
		for _, e := range entries {
			rows = append(rows, []string{
				strconv.Itoa(e.Index),
				e.CreatedAt.Format(time.RFC3339),
				e.Label,
				e.ContentID,
				shorten(e.Digest, 16),
			})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
	},
}

// ── fetch ────────────────────────────────────────────────────────────────────

var fetchOut string

var fetchCmd = &cobra.Command{
	Use:   "fetch <cid>",
	Short: "Download stored content by CID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		data, err := c.Fetch(context.Background(), args[0])
		if err != nil {
			return err
		}
		if fetchOut == "" || fetchOut == "-" {
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := os.WriteFile(fetchOut, data, 0o644); err != nil {
			return err
		}
		pterm.Success.Printfln("wrote %d bytes to %s", len(data), fetchOut)
		return nil
	},
}

// ── export ───────────────────────────────────────────────────────────────────

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Snapshot a server's ledger into a JSON file for offline verification",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		remote, err := c.Entries(context.Background())
		if err != nil {
			return err
		}

		entries := make([]ledger.Entry, len(remote))
		for i, e := range remote {
			entries[i] = ledger.Entry{
				Index:      e.Index,
				CreatedAt:  e.CreatedAt,
				Label:      e.Label,
				ContentID:  e.ContentID,
				PrevDigest: e.PrevDigest,
				Digest:     e.Digest,
			}
		}

		store, err := ledger.NewJSONFileStore(exportOut)
		if err != nil {
			return err
		}
		if err := store.Save(context.Background(), entries); err != nil {
			return err
		}
		pterm.Success.Printfln("exported %d entries to %s", len(entries), exportOut)
		return nil
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchOut, "output", "o", "", "write content to this file instead of stdout")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "ledger-export.json", "destination JSON file")
	rootCmd.AddCommand(exportCmd)
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
