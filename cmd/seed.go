/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/quillpress/apiserver/config"
	"github.com/quillpress/apiserver/internal/auth"
	"github.com/quillpress/apiserver/internal/db"
	"github.com/quillpress/apiserver/internal/services"
	"github.com/quillpress/apiserver/internal/store"
	"github.com/quillpress/apiserver/types"
	"github.com/spf13/cobra"
)

var seedPosts = []types.PostInput{
	{
		Title:   "Getting Started with Quill",
		Content: "Quill pairs a small Go API with a single-page front end. This post walks through registering, writing a draft and publishing it.",
	},
	{
		Title:   "Adding Images to Your Posts",
		Content: "Upload a JPEG, PNG or GIF from the editor and the returned URL is attached to the post. Images are capped at five megabytes.",
	},
}

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace all data with a demo account and sample posts",
	Long: `Deletes every user and post, then creates demo@example.com
(password demo123) with two published posts. Usage:

	quill seed
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := newLogger(cfg.LogLevel)
		ctx := cmd.Context()

		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		userRepo := store.NewUserRepository(conn)
		if err := userRepo.DeleteAll(ctx); err != nil {
			return fmt.Errorf("clear users: %w", err)
		}

		// Seeded sessions are discarded, so any signing key will do.
		tokens := auth.NewTokenService("seed", 0)
		userService := services.NewUserService(userRepo, tokens)
		postService := services.NewPostService(store.NewPostRepository(conn), nil, log)

		session, err := userService.Register(ctx, services.RegisterInput{
			Email:    "demo@example.com",
			Password: "demo123",
			Name:     "Demo User",
		})
		if err != nil {
			return fmt.Errorf("create demo user: %w", err)
		}

		published := true
		for _, input := range seedPosts {
			input.Published = &published
			if _, err := postService.Create(ctx, session.User.ID, input); err != nil {
				return fmt.Errorf("create post %q: %w", input.Title, err)
			}
		}

		log.Info("database seeded",
			slog.String("email", session.User.Email),
			slog.Int("posts", len(seedPosts)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
