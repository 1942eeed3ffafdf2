// Pulse admin CLI: account management and live server statistics
// against the local database.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pulseapp/pulse/internal/auth"
	"github.com/pulseapp/pulse/internal/database"
	"github.com/pulseapp/pulse/internal/models"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse admin CLI - manage accounts and inspect the database",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using system environment variables")
		}
		if err := database.Initialize(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to connect to database: %v\n", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		database.Close()
	},
}

var createUserCmd = &cobra.Command{
	Use:   "create-user <email> <username> <password>",
	Short: "Create a new account",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		service := auth.NewService([]byte(os.Getenv("JWT_SECRET")), 24*time.Hour)

		resp, err := service.RegisterNativeUser(auth.RegisterRequest{
			Email:       args[0],
			Username:    args[1],
			Password:    args[2],
			DisplayName: args[1],
		})
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		fmt.Printf("Created user %s (%s)\n", resp.User.Username, resp.User.ID)
		return nil
	},
}

var promoteAdminCmd = &cobra.Command{
	Use:   "promote-admin <email>",
	Short: "Grant admin rights to an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result := database.DB.Model(&models.User{}).
			Where("LOWER(email) = LOWER(?)", args[0]).
			Update("is_admin", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("no user with email %s", args[0])
		}

		fmt.Printf("Promoted %s to admin\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print table counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		counts := map[string]interface{}{
			"users":         &models.User{},
			"posts":         &models.Post{},
			"comments":      &models.Comment{},
			"likes":         &models.Like{},
			"follows":       &models.Follow{},
			"conversations": &models.Conversation{},
			"messages":      &models.Message{},
			"notifications": &models.Notification{},
		}

		for name, model := range counts {
			var count int64
			if err := database.DB.Model(model).Count(&count).Error; err != nil {
				return err
			}
			fmt.Printf("%-15s %d\n", name, count)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(promoteAdminCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
