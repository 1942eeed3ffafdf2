// Package seed populates the database with realistic development data.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/pulseapp/pulse/internal/models"
	"github.com/pulseapp/pulse/internal/store"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Seeder generates fake users, posts, and conversations
type Seeder struct {
	db       *gorm.DB
	messages *store.MessageStore
}

// NewSeeder creates a seeder for the given database
func NewSeeder(db *gorm.DB) *Seeder {
	_ = gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:       db,
		messages: store.NewMessageStore(db),
	}
}

// SeedDev fills the database with a realistic development dataset
func (s *Seeder) SeedDev() error {
	users, err := s.seedUsers(25)
	if err != nil {
		return err
	}

	posts, err := s.seedPosts(users, 100)
	if err != nil {
		return err
	}

	if err := s.seedFollows(users); err != nil {
		return err
	}
	if err := s.seedLikes(users, posts); err != nil {
		return err
	}
	if err := s.seedComments(users, posts, 200); err != nil {
		return err
	}
	if err := s.seedConversations(users, 40); err != nil {
		return err
	}
	return nil
}

// SeedTest creates a minimal dataset for integration testing
func (s *Seeder) SeedTest() error {
	users, err := s.seedUsers(3)
	if err != nil {
		return err
	}

	posts, err := s.seedPosts(users, 5)
	if err != nil {
		return err
	}
	if err := s.seedLikes(users, posts); err != nil {
		return err
	}
	return s.seedConversations(users, 2)
}

// Clean removes all rows from the seeded tables
func (s *Seeder) Clean() error {
	tables := []interface{}{
		&models.Notification{},
		&models.Message{},
		&models.Conversation{},
		&models.Comment{},
		&models.Like{},
		&models.Follow{},
		&models.Post{},
		&models.User{},
	}

	for _, table := range tables {
		if err := s.db.Unscoped().Where("1 = 1").Delete(table).Error; err != nil {
			return fmt.Errorf("failed to clean table: %w", err)
		}
	}
	return nil
}

func (s *Seeder) seedUsers(count int) ([]models.User, error) {
	// All seed accounts share one password so developers can log in
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	hashStr := string(hash)

	users := make([]models.User, 0, count)
	seen := make(map[string]bool)

	for i := 0; i < count; i++ {
		username := gofakeit.Username()
		email := gofakeit.Email()
		for seen[username] || seen[email] {
			username = gofakeit.Username()
			email = gofakeit.Email()
		}
		seen[username] = true
		seen[email] = true

		lastActive := gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now())
		user := models.User{
			Email:        email,
			Username:     username,
			DisplayName:  gofakeit.Name(),
			Bio:          gofakeit.HipsterSentence(8),
			PasswordHash: &hashStr,
			AvatarURL:    gofakeit.ImageURL(200, 200),
			LastActiveAt: &lastActive,
		}

		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", username, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedPosts(users []models.User, count int) ([]models.Post, error) {
	posts := make([]models.Post, 0, count)

	for i := 0; i < count; i++ {
		author := users[gofakeit.Number(0, len(users)-1)]

		post := models.Post{
			UserID:    author.ID,
			Body:      gofakeit.HipsterParagraph(1, 2, 8, " "),
			CreatedAt: gofakeit.DateRange(time.Now().AddDate(0, 0, -30), time.Now()),
		}
		if gofakeit.Bool() {
			post.ImageURL = gofakeit.ImageURL(800, 600)
		}

		if err := s.db.Create(&post).Error; err != nil {
			return nil, fmt.Errorf("failed to create post: %w", err)
		}
		posts = append(posts, post)
	}

	for _, user := range users {
		var postCount int64
		s.db.Model(&models.Post{}).Where("user_id = ?", user.ID).Count(&postCount)
		s.db.Model(&models.User{}).Where("id = ?", user.ID).
			UpdateColumn("post_count", postCount)
	}
	return posts, nil
}

func (s *Seeder) seedFollows(users []models.User) error {
	for _, follower := range users {
		// Each user follows roughly a third of the others
		for _, followee := range users {
			if follower.ID == followee.ID || gofakeit.Number(0, 2) != 0 {
				continue
			}

			follow := models.Follow{
				FollowerID: follower.ID,
				FolloweeID: followee.ID,
			}
			if err := s.db.Create(&follow).Error; err != nil {
				continue // unique index collision, skip
			}
		}
	}

	for _, user := range users {
		var followers, following int64
		s.db.Model(&models.Follow{}).Where("followee_id = ?", user.ID).Count(&followers)
		s.db.Model(&models.Follow{}).Where("follower_id = ?", user.ID).Count(&following)
		s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(map[string]interface{}{
			"follower_count":  followers,
			"following_count": following,
		})
	}
	return nil
}

func (s *Seeder) seedLikes(users []models.User, posts []models.Post) error {
	for _, post := range posts {
		for _, user := range users {
			if gofakeit.Number(0, 3) != 0 {
				continue
			}
			like := models.Like{PostID: post.ID, UserID: user.ID}
			if err := s.db.Create(&like).Error; err != nil {
				continue
			}
		}

		var likeCount int64
		s.db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likeCount)
		s.db.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("like_count", likeCount)
	}
	return nil
}

func (s *Seeder) seedComments(users []models.User, posts []models.Post, count int) error {
	for i := 0; i < count; i++ {
		post := posts[gofakeit.Number(0, len(posts)-1)]
		author := users[gofakeit.Number(0, len(users)-1)]

		comment := models.Comment{
			PostID:    post.ID,
			UserID:    author.ID,
			Body:      gofakeit.HipsterSentence(8),
			CreatedAt: gofakeit.DateRange(post.CreatedAt, time.Now()),
		}
		if err := s.db.Create(&comment).Error; err != nil {
			return fmt.Errorf("failed to create comment: %w", err)
		}
	}

	for _, post := range posts {
		var commentCount int64
		s.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&commentCount)
		s.db.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comment_count", commentCount)
	}
	return nil
}

func (s *Seeder) seedConversations(users []models.User, count int) error {
	if len(users) < 2 {
		return nil
	}

	for i := 0; i < count; i++ {
		a := users[gofakeit.Number(0, len(users)-1)]
		b := users[gofakeit.Number(0, len(users)-1)]
		if a.ID == b.ID {
			continue
		}

		// A short back-and-forth thread
		turns := gofakeit.Number(2, 8)
		sender, recipient := a, b
		for j := 0; j < turns; j++ {
			_, err := s.messages.SaveMessage(context.Background(), sender.ID, recipient.ID, "",
				gofakeit.HipsterSentence(8), models.MessageTypeText)
			if err != nil {
				return fmt.Errorf("failed to seed message: %w", err)
			}
			sender, recipient = recipient, sender
		}
	}
	return nil
}
