package sportapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/riskibarqy/team-reconciler/internal/domain/entity"
	"github.com/riskibarqy/team-reconciler/internal/usecase"
)

const defaultClubdataBaseURL = "https://api.clubdata.net/v1"

// ClubdataClient talks to the stats provider. Clubdata ids are opaque decimal
// strings allocated in contiguous blocks per competition, which is what makes
// the enumerated-range probe possible at all.
type ClubdataClient struct {
	core *client
}

func NewClubdataClient(cfg ClientConfig) *ClubdataClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultClubdataBaseURL
	}
	if strings.TrimSpace(cfg.TokenParam) == "" {
		cfg.TokenParam = "key"
	}
	return &ClubdataClient{core: newClient(cfg)}
}

type clubdataTeam struct {
	TeamID   string `json:"team_id"`
	TeamName string `json:"team_name"`
	AltNames string `json:"alternate_names"`
}

type clubdataTeamsEnvelope struct {
	Teams []clubdataTeam `json:"teams"`
}

type clubdataFixture struct {
	FixtureID string `json:"fixture_id"`
	HomeID    string `json:"home_id"`
	HomeName  string `json:"home_name"`
	AwayID    string `json:"away_id"`
	AwayName  string `json:"away_name"`
}

type clubdataFixturesEnvelope struct {
	Fixtures []clubdataFixture `json:"fixtures"`
}

func (c *ClubdataClient) TeamsByCompetition(ctx context.Context, competition string) ([]entity.Record, error) {
	competition = strings.TrimSpace(competition)
	if competition == "" {
		return nil, fmt.Errorf("competition is required")
	}

	var envelope clubdataTeamsEnvelope
	query := map[string]string{"competition": competition}
	if err := c.core.doJSON(ctx, "/lookup/competition_teams", query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch clubdata teams competition=%s: %w", competition, err)
	}

	return mapClubdataTeams(envelope.Teams), nil
}

func (c *ClubdataClient) SearchTeams(ctx context.Context, query string) ([]entity.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var envelope clubdataTeamsEnvelope
	if err := c.core.doJSON(ctx, "/search/teams", map[string]string{"q": query}, &envelope); err != nil {
		return nil, fmt.Errorf("search clubdata teams query=%s: %w", query, err)
	}

	return mapClubdataTeams(envelope.Teams), nil
}

func (c *ClubdataClient) TeamByID(ctx context.Context, id string) (entity.Record, error) {
	var envelope clubdataTeamsEnvelope
	if err := c.core.doJSON(ctx, "/lookup/team/"+url.PathEscape(id), nil, &envelope); err != nil {
		return entity.Record{}, fmt.Errorf("fetch clubdata team id=%s: %w", id, err)
	}

	// The provider answers unknown ids with an empty team list, not a 404.
	teams := mapClubdataTeams(envelope.Teams)
	if len(teams) == 0 {
		return entity.Record{}, fmt.Errorf("fetch clubdata team id=%s: %w", id, usecase.ErrNotFound)
	}

	return teams[0], nil
}

func (c *ClubdataClient) TeamFixtures(ctx context.Context, teamID string) ([]entity.Fixture, error) {
	var envelope clubdataFixturesEnvelope
	query := map[string]string{"team": teamID}
	if err := c.core.doJSON(ctx, "/lookup/fixtures", query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch clubdata fixtures team_id=%s: %w", teamID, err)
	}

	out := make([]entity.Fixture, 0, len(envelope.Fixtures))
	for _, item := range envelope.Fixtures {
		if strings.TrimSpace(item.FixtureID) == "" {
			continue
		}
		out = append(out, entity.Fixture{
			Provider: entity.ProviderClubdata,
			ID:       strings.TrimSpace(item.FixtureID),
			HomeID:   strings.TrimSpace(item.HomeID),
			HomeName: strings.TrimSpace(item.HomeName),
			AwayID:   strings.TrimSpace(item.AwayID),
			AwayName: strings.TrimSpace(item.AwayName),
		})
	}

	return out, nil
}

func mapClubdataTeams(items []clubdataTeam) []entity.Record {
	out := make([]entity.Record, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.TeamID)
		name := strings.TrimSpace(item.TeamName)
		if id == "" || name == "" {
			continue
		}
		out = append(out, entity.Record{
			Provider: entity.ProviderClubdata,
			ID:       id,
			Name:     name,
		})
	}
	return out
}
