package course

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yeezy-com/stride-track-explore/internal/db"
	"github.com/yeezy-com/stride-track-explore/internal/shared/geo"
)

var (
	ErrNotFound     = errors.New("course: not found")
	ErrInvalidInput = errors.New("course: invalid input")
	ErrUnavailable  = errors.New("course: catalog unavailable")
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Create stores a course. A zero target distance defaults to the route length.
func (s *Service) Create(ctx context.Context, input Course) (Course, error) {
	if s.db == nil {
		return Course{}, ErrUnavailable
	}
	if input.Name == "" {
		return Course{}, fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if len(input.Route) < 2 {
		return Course{}, fmt.Errorf("%w: route needs at least two points", ErrInvalidInput)
	}
	if input.TargetDistanceKm < 0 {
		return Course{}, fmt.Errorf("%w: negative target distance", ErrInvalidInput)
	}
	if input.TargetDistanceKm == 0 {
		input.TargetDistanceKm = geo.PolylineKm(input.Route)
	}
	if input.Tags == nil {
		input.Tags = []string{}
	}
	input.ID = uuid.NewString()

	row := s.db.QueryRow(ctx, `
		INSERT INTO courses (id, name, location, difficulty, target_distance_km, description, tags, route, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7, ST_GeogFromText($8), $9)
		RETURNING created_at
	`, input.ID, input.Name, input.Location, input.Difficulty, input.TargetDistanceKm, input.Description, input.Tags, geo.LineStringWKT(input.Route), input.CreatedBy)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Course{}, fmt.Errorf("course: insert: %w", err)
	}
	return input, nil
}

func (s *Service) Get(ctx context.Context, id string) (Course, error) {
	if s.db == nil {
		return Course{}, ErrUnavailable
	}
	row := s.db.QueryRow(ctx, `
		SELECT id, name, location, difficulty, target_distance_km, description, tags, ST_AsText(route), created_by, created_at
		FROM courses WHERE id=$1
	`, id)
	c, err := scanCourse(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Course{}, ErrNotFound
	}
	if err != nil {
		return Course{}, fmt.Errorf("course: get %s: %w", id, err)
	}
	return c, nil
}

// List returns courses newest first, optionally narrowed to one difficulty.
func (s *Service) List(ctx context.Context, difficulty string) ([]Course, error) {
	if s.db == nil {
		return nil, ErrUnavailable
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, name, location, difficulty, target_distance_km, description, tags, ST_AsText(route), created_by, created_at
		FROM courses
		WHERE ($1 = '' OR difficulty = $1)
		ORDER BY created_at DESC
	`, difficulty)
	if err != nil {
		return nil, fmt.Errorf("course: list: %w", err)
	}
	defer rows.Close()

	courses := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("course: list: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("course: list: %w", err)
	}
	return courses, nil
}

func scanCourse(row pgx.Row) (Course, error) {
	var c Course
	var wkt string
	if err := row.Scan(&c.ID, &c.Name, &c.Location, &c.Difficulty, &c.TargetDistanceKm, &c.Description, &c.Tags, &wkt, &c.CreatedBy, &c.CreatedAt); err != nil {
		return Course{}, err
	}
	route, err := geo.ParseLineStringWKT(wkt)
	if err != nil {
		return Course{}, err
	}
	c.Route = route
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c, nil
}
