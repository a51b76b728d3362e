// Package seed はYAMLファイルの初期データをサービス層経由で投入する。
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/warbler/internal/auth"
	"github.com/hitoshi/warbler/internal/model"
)

// File は初期データファイルの内容。
type File struct {
	Users   []User   `yaml:"users"`
	Follows []Follow `yaml:"follows"`
	Likes   []Like   `yaml:"likes"`
}

// User は投入するユーザーとその投稿。
type User struct {
	Username       string   `yaml:"username"`
	Email          string   `yaml:"email"`
	Password       string   `yaml:"password"`
	ImageURL       string   `yaml:"image_url"`
	HeaderImageURL string   `yaml:"header_image_url"`
	Bio            string   `yaml:"bio"`
	Location       string   `yaml:"location"`
	Messages       []string `yaml:"messages"`
}

// Follow はfollowerがfolloweeをフォローする関係。
type Follow struct {
	Follower string `yaml:"follower"`
	Followee string `yaml:"followee"`
}

// Like はuserがauthorのMessage番目（0始まり）の投稿にいいねする関係。
type Like struct {
	User    string `yaml:"user"`
	Author  string `yaml:"author"`
	Message int    `yaml:"message"`
}

// Parse はYAMLを読み込み、ユーザー名の参照を検証する。未知のキーはエラーにする。
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Load はパスのファイルをParseする。
func Load(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer fh.Close()
	return Parse(fh)
}

func (f *File) validate() error {
	messages := make(map[string]int, len(f.Users))
	for _, u := range f.Users {
		if u.Username == "" {
			return fmt.Errorf("seed user without username")
		}
		if _, dup := messages[u.Username]; dup {
			return fmt.Errorf("duplicate seed user %q", u.Username)
		}
		messages[u.Username] = len(u.Messages)
	}

	for _, fl := range f.Follows {
		for _, name := range []string{fl.Follower, fl.Followee} {
			if _, ok := messages[name]; !ok {
				return fmt.Errorf("follow references unknown user %q", name)
			}
		}
	}
	for _, l := range f.Likes {
		if _, ok := messages[l.User]; !ok {
			return fmt.Errorf("like references unknown user %q", l.User)
		}
		n, ok := messages[l.Author]
		if !ok {
			return fmt.Errorf("like references unknown author %q", l.Author)
		}
		if l.Message < 0 || l.Message >= n {
			return fmt.Errorf("like references message %d of %q, which has %d messages", l.Message, l.Author, n)
		}
	}
	return nil
}

// Signer はユーザー作成のインターフェース。*auth.Serviceが満たす。
type Signer interface {
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
}

// Profiles はプロフィール更新とフォローのインターフェース。*user.Serviceが満たす。
type Profiles interface {
	UpdateProfile(ctx context.Context, currID string, in model.ProfileUpdate, password string) (*model.User, error)
	Follow(ctx context.Context, currID, targetID string) error
}

// Poster は投稿といいねのインターフェース。*message.Serviceが満たす。
type Poster interface {
	Create(ctx context.Context, userID, text string) (*model.Message, error)
	Like(ctx context.Context, currID, id string) error
}

// Result は投入した件数。
type Result struct {
	Users    int
	Messages int
	Follows  int
	Likes    int
}

// Seeder はFileの内容をサービス経由で投入する。
type Seeder struct {
	signer   Signer
	profiles Profiles
	poster   Poster
	logger   *slog.Logger
}

// NewSeeder はSeederを生成する。
func NewSeeder(signer Signer, profiles Profiles, poster Poster, logger *slog.Logger) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{signer: signer, profiles: profiles, poster: poster, logger: logger}
}

// Run はユーザー、投稿、フォロー、いいねの順に投入する。
// 途中で失敗した場合はそれまでの投入結果を残したままエラーを返す。
func (s *Seeder) Run(ctx context.Context, f *File) (*Result, error) {
	res := &Result{}
	ids := make(map[string]string, len(f.Users))
	posts := make(map[string][]string, len(f.Users))

	for _, u := range f.Users {
		created, err := s.signer.Signup(ctx, auth.SignupInput{
			Username: u.Username,
			Email:    u.Email,
			Password: u.Password,
			ImageURL: u.ImageURL,
		})
		if err != nil {
			return res, fmt.Errorf("failed to create user %q: %w", u.Username, err)
		}
		ids[u.Username] = created.ID
		res.Users++

		if u.Bio != "" || u.Location != "" || u.HeaderImageURL != "" {
			_, err := s.profiles.UpdateProfile(ctx, created.ID, model.ProfileUpdate{
				Username:       created.Username,
				Email:          created.Email,
				ImageURL:       u.ImageURL,
				HeaderImageURL: u.HeaderImageURL,
				Bio:            u.Bio,
				Location:       u.Location,
			}, u.Password)
			if err != nil {
				return res, fmt.Errorf("failed to update profile of %q: %w", u.Username, err)
			}
		}

		for _, text := range u.Messages {
			msg, err := s.poster.Create(ctx, created.ID, text)
			if err != nil {
				return res, fmt.Errorf("failed to post message of %q: %w", u.Username, err)
			}
			posts[u.Username] = append(posts[u.Username], msg.ID)
			res.Messages++
		}
	}

	for _, fl := range f.Follows {
		if err := s.profiles.Follow(ctx, ids[fl.Follower], ids[fl.Followee]); err != nil {
			return res, fmt.Errorf("failed to follow %q -> %q: %w", fl.Follower, fl.Followee, err)
		}
		res.Follows++
	}

	for _, l := range f.Likes {
		if err := s.poster.Like(ctx, ids[l.User], posts[l.Author][l.Message]); err != nil {
			return res, fmt.Errorf("failed to like %q's message %d as %q: %w", l.Author, l.Message, l.User, err)
		}
		res.Likes++
	}

	s.logger.Info("seed completed",
		slog.Int("users", res.Users),
		slog.Int("messages", res.Messages),
		slog.Int("follows", res.Follows),
		slog.Int("likes", res.Likes),
	)
	return res, nil
}
