package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sahayak-app/sahayak/pkg/store"
)

func newMemoryCommand() *cobra.Command {
	memoryRoot := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit a user's memory facts",
	}

	memoryRoot.AddCommand(&cobra.Command{
		Use:     "list <user_id>",
		Short:   "List stored facts for a user",
		Args:    cobra.ExactArgs(1),
		Example: "  sahayak memory list local",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			facts, err := a.store.ListFacts(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("list facts: %w", err)
			}
			if len(facts) == 0 {
				fmt.Println("No facts stored.")
				return nil
			}

			now := time.Now().UnixMilli()
			for _, f := range facts {
				status := ""
				if f.Expired(now) {
					status = " (expired)"
				}
				fmt.Printf("%-28s %-12s %s%s\n", f.Key, f.Type, string(f.Value), status)
			}
			return nil
		},
	})

	var (
		factType string
		ttlDays  int
	)

	set := &cobra.Command{
		Use:   "set <user_id> <key> <value>",
		Short: "Upsert a fact; value is JSON, bare words become strings",
		Args:  cobra.ExactArgs(3),
		Example: strings.Join([]string{
			"  sahayak memory set local location pune",
			"  sahayak memory set local age 34",
			"  sahayak memory set local interested_in_gst true --type context --ttl-days 30",
		}, "\n"),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			value := json.RawMessage(args[2])
			if !json.Valid(value) {
				encoded, err := json.Marshal(args[2])
				if err != nil {
					return fmt.Errorf("encode value: %w", err)
				}
				value = encoded
			}

			ft := store.FactType(factType)
			switch ft {
			case store.FactPreference, store.FactFact, store.FactContext:
			default:
				return fmt.Errorf("invalid --type %q: must be preference, fact, or context", factType)
			}

			var expiresAt int64
			if ttlDays > 0 {
				expiresAt = time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour).UnixMilli()
			}

			fact, err := a.store.UpsertFact(cmd.Context(), store.MemoryFact{
				UserID:      args[0],
				Key:         args[1],
				Value:       value,
				Type:        ft,
				ExpiresAtMS: expiresAt,
			})
			if err != nil {
				return fmt.Errorf("upsert fact: %w", err)
			}
			fmt.Printf("Stored %s=%s (%s)\n", fact.Key, string(fact.Value), fact.Type)
			return nil
		},
	}
	set.Flags().StringVar(&factType, "type", "fact", "Classification: preference, fact, or context")
	set.Flags().IntVar(&ttlDays, "ttl-days", 0, "Expire the fact after N days (0 = never)")
	memoryRoot.AddCommand(set)

	memoryRoot.AddCommand(&cobra.Command{
		Use:     "purge",
		Short:   "Delete all expired facts now",
		Example: "  sahayak memory purge",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.store.PurgeExpiredFacts(cmd.Context(), time.Now().UnixMilli())
			if err != nil {
				return fmt.Errorf("purge: %w", err)
			}
			fmt.Printf("Purged %d expired fact(s).\n", n)
			return nil
		},
	})

	return memoryRoot
}
