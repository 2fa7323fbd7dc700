package records

import "context"

// RecentLimit is how many runs the history view shows.
const RecentLimit = 10

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Recent(ctx context.Context, runnerID string, limit int) ([]RunRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = RecentLimit
	}
	list, err := s.store.List(ctx, runnerID, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []RunRecord{}
	}
	return list, nil
}

func (s *Service) Stats(ctx context.Context, runnerID string) (Stats, error) {
	list, err := s.store.List(ctx, runnerID, 0)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(list), nil
}
