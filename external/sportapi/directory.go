package sportapi

import (
	"context"
	"fmt"

	"github.com/riskibarqy/team-reconciler/internal/domain/entity"
)

// Directory routes lookup calls to the right provider client. It is the only
// implementation of the engine's LookupClient; each client carries its own
// rate gate, retry policy, and circuit breaker.
type Directory struct {
	scoreline *ScorelineClient
	clubdata  *ClubdataClient
}

func NewDirectory(scoreline *ScorelineClient, clubdata *ClubdataClient) *Directory {
	return &Directory{
		scoreline: scoreline,
		clubdata:  clubdata,
	}
}

func (d *Directory) TeamsByCompetition(ctx context.Context, provider entity.Provider, competition string) ([]entity.Record, error) {
	switch provider {
	case entity.ProviderScoreline:
		return d.scoreline.TeamsByCompetition(ctx, competition)
	case entity.ProviderClubdata:
		return d.clubdata.TeamsByCompetition(ctx, competition)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func (d *Directory) SearchTeams(ctx context.Context, provider entity.Provider, query string) ([]entity.Record, error) {
	switch provider {
	case entity.ProviderScoreline:
		return d.scoreline.SearchTeams(ctx, query)
	case entity.ProviderClubdata:
		return d.clubdata.SearchTeams(ctx, query)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func (d *Directory) TeamByID(ctx context.Context, provider entity.Provider, id string) (entity.Record, error) {
	switch provider {
	case entity.ProviderScoreline:
		return d.scoreline.TeamByID(ctx, id)
	case entity.ProviderClubdata:
		return d.clubdata.TeamByID(ctx, id)
	default:
		return entity.Record{}, fmt.Errorf("unknown provider %q", provider)
	}
}

func (d *Directory) TeamFixtures(ctx context.Context, provider entity.Provider, teamID string) ([]entity.Fixture, error) {
	switch provider {
	case entity.ProviderScoreline:
		return d.scoreline.TeamFixtures(ctx, teamID)
	case entity.ProviderClubdata:
		return d.clubdata.TeamFixtures(ctx, teamID)
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
