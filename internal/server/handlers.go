package server

import (
	"context"
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/maruel/musicmark/internal/server/dto"
	"github.com/maruel/musicmark/internal/storage"
)

// Pagination bounds for listen queries.
const (
	defaultPageSize = 50
	maxPageSize     = 200
)

func (s *Server) ping(ctx context.Context, user *storage.User, req *dto.PingRequest) (*dto.PingResponse, error) {
	return &dto.PingResponse{OK: true, User: user}, nil
}

func (s *Server) createListen(ctx context.Context, user *storage.User, req *dto.CreateListenRequest) (*dto.CreateListenResponse, error) {
	source := req.Source
	if source == "" {
		source = "watch"
	}
	id, duplicate, err := s.svc.Listens.Insert(user.ID, storage.NewListen{
		Title:       req.Title,
		Artist:      req.Artist,
		Album:       req.Album,
		Source:      source,
		StartedAt:   int64(req.StartedAt),
		DurationSec: req.DurationSec,
		ExternalID:  req.ExternalID,
	})
	if err != nil {
		return nil, err
	}
	if !duplicate {
		slog.InfoContext(ctx, "Recorded listen", "user", user.Username, "id", id, "title", req.Title)
	}
	return &dto.CreateListenResponse{OK: true, ID: id, Duplicate: duplicate}, nil
}

func (s *Server) listListens(ctx context.Context, user *storage.User, req *dto.ListListensRequest) (*dto.ListListensResponse, error) {
	limit, page := clampPage(req.Limit, req.Page)
	offset := (page - 1) * limit
	return &dto.ListListensResponse{
		OK:    true,
		Page:  page,
		Limit: limit,
		Total: s.svc.Listens.Count(user.ID),
		Items: s.svc.Listens.List(user.ID, limit, offset),
	}, nil
}

func (s *Server) deleteListens(ctx context.Context, user *storage.User, req *dto.DeleteListensRequest) (*dto.DeleteListensResponse, error) {
	removed, err := s.svc.Listens.Delete(user.ID, req.IDs)
	if err != nil {
		return nil, err
	}
	return &dto.DeleteListensResponse{OK: true, Removed: removed}, nil
}

func (s *Server) stats(ctx context.Context, user *storage.User, req *dto.StatsRequest) (*dto.StatsResponse, error) {
	return &dto.StatsResponse{OK: true, UserStats: s.svc.Stats.Stats(user.ID)}, nil
}

func (s *Server) topSongs(ctx context.Context, user *storage.User, req *dto.TopSongsRequest) (*dto.TopSongsResponse, error) {
	items, err := s.svc.Stats.TopSongs(user.ID, storage.Range(req.Range), req.Limit)
	if err != nil {
		return nil, err
	}
	return &dto.TopSongsResponse{OK: true, Items: items}, nil
}

// exportListens streams the caller's full history as CSV. It bypasses the
// generic wrapper because the response is not JSON.
func (s *Server) exportListens(w http.ResponseWriter, r *http.Request) {
	user, ok := s.basicAuth(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="listens.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"id", "title", "artist", "album", "source", "started_at", "duration_sec", "external_id", "created_at"})
	for _, l := range s.svc.Listens.ListAll(user.ID) {
		_ = cw.Write([]string{
			strconv.FormatInt(l.ID, 10),
			l.Title,
			l.Artist,
			l.Album,
			l.Source,
			strconv.FormatInt(l.StartedAt, 10),
			strconv.FormatInt(l.DurationSec, 10),
			l.ExternalID,
			strconv.FormatInt(l.Created, 10),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write CSV export", "err", err)
	}
}

func (s *Server) login(ctx context.Context, _ *storage.User, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.svc.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	token, err := s.issueToken(user, s.now())
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "User logged in", "user", user.Username)
	return &dto.LoginResponse{OK: true, Token: token, User: user}, nil
}

func (s *Server) me(ctx context.Context, user *storage.User, req *dto.MeRequest) (*dto.MeResponse, error) {
	return &dto.MeResponse{OK: true, User: user}, nil
}

func (s *Server) changePassword(ctx context.Context, user *storage.User, req *dto.ChangePasswordRequest) (*dto.OKResponse, error) {
	if err := s.svc.Users.UpdatePassword(user.ID, req.Password); err != nil {
		return nil, err
	}
	return &dto.OKResponse{OK: true}, nil
}

func (s *Server) listUsers(ctx context.Context, _ *storage.User, req *dto.ListUsersRequest) (*dto.ListUsersResponse, error) {
	return &dto.ListUsersResponse{OK: true, Users: s.svc.Users.List()}, nil
}

func (s *Server) createUser(ctx context.Context, admin *storage.User, req *dto.CreateUserRequest) (*dto.CreateUserResponse, error) {
	user, err := s.svc.Users.Create(req.Username, req.Password, storage.Role(req.Role))
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "User created", "user", user.Username, "role", user.Role, "by", admin.Username)
	return &dto.CreateUserResponse{OK: true, User: user}, nil
}

func (s *Server) resetPassword(ctx context.Context, admin *storage.User, req *dto.ResetPasswordRequest) (*dto.OKResponse, error) {
	id, err := strconv.ParseInt(req.ID, 10, 64)
	if err != nil {
		return nil, dto.BadRequest("invalid user id")
	}
	if err := s.svc.Users.UpdatePassword(id, req.Password); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Password reset", "userID", id, "by", admin.Username)
	return &dto.OKResponse{OK: true}, nil
}

func (s *Server) health(ctx context.Context, _ *storage.User, req *dto.HealthRequest) (*dto.HealthResponse, error) {
	return &dto.HealthResponse{OK: true, Version: s.cfg.Version}, nil
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, dto.NotFound(r.URL.Path))
}

// clampPage bounds the page size to [1, maxPageSize] (default
// defaultPageSize) and the page number to at least 1.
func clampPage(limit, page int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if page < 1 {
		page = 1
	}
	return limit, page
}
