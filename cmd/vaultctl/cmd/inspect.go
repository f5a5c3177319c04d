package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vaultdb/vaultdb"
)

var (
	inspectMaxIDs int
	inspectJSON   bool
	inspectQuiet  bool
)

// InspectOutput is the JSON shape of an inspection report.
type InspectOutput struct {
	File          string   `json:"file"`
	CreatedAt     string   `json:"created_at"`
	VaultVersion  string   `json:"vault_version"`
	AppName       string   `json:"app_name,omitempty"`
	Salt          string   `json:"salt"`
	DocumentCount int      `json:"document_count"`
	DocumentIDs   []string `json:"document_ids"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <vault-path>",
	Short: "Inspect a .vault file",
	Long: `Report a vault file's creation time, format version, app name, a
truncated salt preview, and the document count and ids. Nothing is
decrypted.

Examples:
  vaultctl inspect notes.vault
  vaultctl inspect notes.vault --max-ids 5 --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().IntVarP(&inspectMaxIDs, "max-ids", "n", 10, "max number of document ids to display")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output as JSON")
	inspectCmd.Flags().BoolVarP(&inspectQuiet, "quiet", "q", false, "suppress headers")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	if inspectMaxIDs < 0 {
		return fmt.Errorf("--max-ids must be >= 0")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no such file: %s", path)
	}

	store, err := vaultdb.OpenStore(&osFS{}, path, vaultdb.StoreOptions{})
	if err != nil {
		return err
	}

	meta := store.Meta()
	ids := store.IDs()
	sort.Strings(ids)

	salt := "missing"
	if v, ok := meta.Get(vaultdb.MetaSalt); ok {
		if s, ok := v.(string); ok {
			salt = s
		}
	}

	shown := ids
	if len(shown) > inspectMaxIDs {
		shown = shown[:inspectMaxIDs]
	}

	out := InspectOutput{
		File:          filepath.Base(path),
		CreatedAt:     meta.CreatedAt(),
		VaultVersion:  meta.VaultVersion(),
		AppName:       meta.AppName(),
		Salt:          salt,
		DocumentCount: store.Count(),
		DocumentIDs:   shown,
	}

	if inspectJSON {
		content, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(content))
		return nil
	}

	printHuman(cmd, out)
	return nil
}

func printHuman(cmd *cobra.Command, out InspectOutput) {
	w := cmd.OutOrStdout()
	if !inspectQuiet {
		color.New(color.Bold).Fprintln(w, "vaultdb inspector")
		fmt.Fprintln(w, "------------------------------")
	}
	fmt.Fprintf(w, "File:           %s\n", out.File)
	fmt.Fprintf(w, "Created At:     %s\n", out.CreatedAt)
	fmt.Fprintf(w, "Vault Version:  %s\n", out.VaultVersion)
	appName := out.AppName
	if appName == "" {
		appName = "-"
	}
	fmt.Fprintf(w, "App Name:       %s\n", appName)
	fmt.Fprintf(w, "Salt:           %s\n", truncateSalt(out.Salt))
	fmt.Fprintf(w, "Document Count: %d\n", out.DocumentCount)
	if len(out.DocumentIDs) > 0 {
		fmt.Fprintf(w, "IDs (first %d):\n", len(out.DocumentIDs))
		for _, id := range out.DocumentIDs {
			fmt.Fprintf(w, "  - %s\n", id)
		}
		if out.DocumentCount > len(out.DocumentIDs) {
			fmt.Fprintf(w, "... and %d more\n", out.DocumentCount-len(out.DocumentIDs))
		}
	}
}

func truncateSalt(salt string) string {
	if len(salt) <= 20 {
		return salt
	}
	return salt[:20] + "... (truncated)"
}
