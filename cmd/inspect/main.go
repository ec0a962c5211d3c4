// Command inspect prints the content of a relay Badger directory, one row per
// key, optionally restricted to one key family.
package main

import (
	"chat-relay/infrastructure/storage"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" required:"true"`
	// INSPECT_PREFIX restricts the dump to one key family, e.g. "msg:"
	Prefix  string `envconfig:"INSPECT_PREFIX"`
	Limit   int    `envconfig:"INSPECT_LIMIT" default:"200"`
	Colours bool   `envconfig:"INSPECT_COLOURS" default:"true"`
}

type row struct {
	family string
	key    string
	size   int
	detail string
}

func main() {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	color.Enable = cfg.Colours

	if cfg.Prefix != "" && !lo.Contains(storage.Prefixes, cfg.Prefix) {
		log.Fatalf("Unknown prefix %q, expected one of %s", cfg.Prefix, strings.Join(storage.Prefixes, " "))
	}

	// Another process may hold the directory lock
	db, err := badger.Open(badger.DefaultOptions(cfg.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil))
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	rows, counts, err := scan(db, cfg.Prefix, cfg.Limit)
	if err != nil {
		log.Fatal(err)
	}
	render(rows)
	summary(counts)
}

func scan(db *badger.DB, prefix string, limit int) ([]row, map[string]int, error) {
	var rows []row
	counts := make(map[string]int)
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			key := string(item.Key())
			family := familyOf(key)
			counts[family]++
			if limit > 0 && len(rows) >= limit {
				continue
			}
			err := item.Value(func(val []byte) error {
				rows = append(rows, row{family: family, key: key, size: len(val), detail: describe(val)})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return rows, counts, err
}

func familyOf(key string) string {
	family, ok := lo.Find(storage.Prefixes, func(p string) bool {
		return strings.HasPrefix(key, p)
	})
	if !ok {
		return "?"
	}
	return strings.TrimSuffix(family, ":")
}

// describe picks a few readable fields out of a JSON record. Index entries
// have an empty or non JSON value and are shown as is.
func describe(val []byte) string {
	var record map[string]any
	if len(val) == 0 || json.Unmarshal(val, &record) != nil {
		return lo.Ellipsis(string(val), 60)
	}
	parts := lo.FilterMap([]string{"email", "title", "role", "content", "revoked"}, func(field string, _ int) (string, bool) {
		v, ok := record[field]
		if !ok || v == nil || v == "" {
			return "", false
		}
		return fmt.Sprintf("%s=%v", field, v), true
	})
	return lo.Ellipsis(strings.Join(parts, " "), 80)
}

func render(rows []row) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Family", "Key", "Bytes", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, r := range rows {
		table.Append([]string{
			color.Cyan.Sprint(r.family),
			r.key,
			fmt.Sprint(r.size),
			r.detail,
		})
	}
	table.Render()
}

func summary(counts map[string]int) {
	families := lo.Keys(counts)
	sort.Strings(families)
	fmt.Println()
	for _, family := range families {
		fmt.Printf("%s %d\n", color.Green.Sprintf("%-18s", family), counts[family])
	}
	if len(families) == 0 {
		color.Yellow.Println("No keys found")
	}
}
