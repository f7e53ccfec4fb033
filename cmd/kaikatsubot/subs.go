package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/config"
	"github.com/kojimamizuki0512-dot/kaikatsu-darts-tg-koyeb/internal/store"
	"github.com/spf13/cobra"
)

var subsCmd = &cobra.Command{
	Use:   "subs",
	Short: "Manage notification subscribers",
}

var subsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscribed chats",
	RunE:  runSubsList,
}

var subsAddCmd = &cobra.Command{
	Use:   "add <chat-id>",
	Short: "Subscribe a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubsAdd,
}

var subsRemoveCmd = &cobra.Command{
	Use:   "remove <chat-id>",
	Short: "Unsubscribe a chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubsRemove,
}

func init() {
	subsCmd.AddCommand(subsListCmd)
	subsCmd.AddCommand(subsAddCmd)
	subsCmd.AddCommand(subsRemoveCmd)
	rootCmd.AddCommand(subsCmd)
}

func openStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	st, err := store.Open(ctx, cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return st, nil
}

func runSubsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	subs, err := st.Subscribers(ctx)
	if err != nil {
		return fmt.Errorf("list subscribers: %w", err)
	}
	if len(subs) == 0 {
		fmt.Println("no subscribers")
		return nil
	}
	for _, s := range subs {
		fmt.Printf("%d\t%s\n", s.ChatID, s.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Printf("total: %d\n", len(subs))
	return nil
}

func runSubsAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", args[0], err)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	added, err := st.Add(ctx, chatID)
	if err != nil {
		return fmt.Errorf("add subscriber: %w", err)
	}
	if added {
		fmt.Printf("subscribed %d\n", chatID)
	} else {
		fmt.Printf("%d is already subscribed\n", chatID)
	}
	return nil
}

func runSubsRemove(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	chatID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat id %q: %w", args[0], err)
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	removed, err := st.Remove(ctx, chatID)
	if err != nil {
		return fmt.Errorf("remove subscriber: %w", err)
	}
	if removed {
		fmt.Printf("unsubscribed %d\n", chatID)
	} else {
		fmt.Printf("%d was not subscribed\n", chatID)
	}
	return nil
}
