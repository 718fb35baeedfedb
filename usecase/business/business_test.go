package business

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/fastygo/exportflow/domain"
	"github.com/fastygo/exportflow/internal/eventbus"
	"github.com/fastygo/exportflow/internal/state"
	"github.com/fastygo/exportflow/internal/testutil"
	"github.com/fastygo/exportflow/repository/docstore"
)

type BusinessSuite struct {
	suite.Suite
	bus    *eventbus.Bus
	states *state.Store
	uc     *UseCase
	ctx    context.Context
}

func TestBusinessSuite(t *testing.T) {
	suite.Run(t, new(BusinessSuite))
}

func (s *BusinessSuite) SetupTest() {
	store := testutil.NewDocumentStore(s.T())
	s.bus = eventbus.New(docstore.NewEventRepository(store), eventbus.Config{}, nil, nil)
	s.states = state.NewStore(docstore.NewStateRepository(store), nil, s.bus, nil, nil, state.Config{})
	s.uc = New(s.states, s.bus, s.bus, nil)
	s.ctx = context.Background()
}

func (s *BusinessSuite) eventsOf(t domain.EventType) []domain.Event {
	events, err := s.uc.Events(s.ctx, "biz", t, 50)
	s.Require().NoError(err)
	return events
}

func (s *BusinessSuite) TestSelectMarketPublishesOnce() {
	var seen []string
	s.bus.Subscribe(domain.EventMarketSelected, func(_ context.Context, e domain.Event) error {
		seen = append(seen, e.Payload["market"].(string))
		return nil
	})

	state, err := s.uc.SelectMarket(s.ctx, "biz", " de ")
	s.Require().NoError(err)
	market, ok := state.TargetMarket("DE")
	s.Require().True(ok)
	s.Equal(domain.MarketNew, market.Status)

	_, err = s.uc.SelectMarket(s.ctx, "biz", "DE")
	s.Require().NoError(err)

	s.Equal([]string{"DE"}, seen)
	s.Len(s.eventsOf(domain.EventMarketSelected), 1)
}

func (s *BusinessSuite) TestConcurrentSelectionPublishesOnce() {
	var published atomic.Int32
	s.bus.Subscribe(domain.EventMarketSelected, func(context.Context, domain.Event) error {
		published.Add(1)
		return nil
	})

	for round := 0; round < 10; round++ {
		published.Store(0)
		businessID := "biz-" + string(rune('a'+round))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.uc.SelectMarket(s.ctx, businessID, "DE")
				s.NoError(err)
			}()
		}
		wg.Wait()

		s.Equal(int32(1), published.Load(), "round %d", round)
		state, err := s.states.GetBusinessState(s.ctx, businessID)
		s.Require().NoError(err)
		s.Len(state.ExportJourney.TargetMarkets, 1)
	}
}

func (s *BusinessSuite) TestSelectMarketReturnsStateAfterSubscribers() {
	s.bus.Subscribe(domain.EventMarketSelected, func(ctx context.Context, e domain.Event) error {
		_, err := s.states.SetTargetMarketStatus(ctx, e.BusinessID, "DE", domain.MarketResearching)
		return err
	})

	state, err := s.uc.SelectMarket(s.ctx, "biz", "DE")
	s.Require().NoError(err)
	market, _ := state.TargetMarket("DE")
	s.Equal(domain.MarketResearching, market.Status)
}

func (s *BusinessSuite) TestSelectMarketValidation() {
	_, err := s.uc.SelectMarket(s.ctx, "biz", "  ")
	s.ErrorIs(err, domain.ErrCountryRequired)

	_, err = s.uc.SelectMarket(s.ctx, "", "DE")
	s.ErrorIs(err, domain.ErrBusinessIDRequired)

	ids, err := s.states.GetAllBusinessIDs(s.ctx)
	s.Require().NoError(err)
	s.Empty(ids)
	s.Empty(s.eventsOf(domain.EventMarketSelected))
}

func (s *BusinessSuite) TestProfileUpdatesAreAnnounced() {
	_, err := s.uc.UpdateState(s.ctx, "biz", map[string]any{"preferences": map[string]any{"currency": "EUR"}})
	s.Require().NoError(err)
	s.Empty(s.eventsOf(domain.EventBusinessProfileUpdated))

	state, err := s.uc.UpdateState(s.ctx, "biz", map[string]any{"profile": map[string]any{"industry": "food"}})
	s.Require().NoError(err)
	s.Equal("food", state.Profile.Industry)

	events := s.eventsOf(domain.EventBusinessProfileUpdated)
	s.Require().Len(events, 1)
	s.Equal(map[string]any{"industry": "food"}, events[0].Payload["changes"])

	history, err := s.uc.History(s.ctx, "biz", 0)
	s.Require().NoError(err)
	s.Len(history, 2)
	s.Len(s.eventsOf(domain.EventStateUpdated), 2)
}
