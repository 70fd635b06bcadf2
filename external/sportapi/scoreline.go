package sportapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/riskibarqy/team-reconciler/internal/domain/entity"
)

const defaultScorelineBaseURL = "https://api.scoreline.io/v2"

// ScorelineClient talks to the fixtures/news provider. Scoreline ids are
// numeric; they travel through the engine as their decimal string form.
type ScorelineClient struct {
	core *client
}

func NewScorelineClient(cfg ClientConfig) *ScorelineClient {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultScorelineBaseURL
	}
	if strings.TrimSpace(cfg.TokenParam) == "" {
		cfg.TokenParam = "api_token"
	}
	return &ScorelineClient{core: newClient(cfg)}
}

type scorelineTeam struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
}

type scorelineTeamsEnvelope struct {
	Data []scorelineTeam `json:"data"`
}

type scorelineTeamEnvelope struct {
	Data scorelineTeam `json:"data"`
}

type scorelineFixture struct {
	ID       int64  `json:"id"`
	HomeID   int64  `json:"home_id"`
	HomeName string `json:"home_name"`
	AwayID   int64  `json:"away_id"`
	AwayName string `json:"away_name"`
}

type scorelineFixturesEnvelope struct {
	Data []scorelineFixture `json:"data"`
}

func (c *ScorelineClient) TeamsByCompetition(ctx context.Context, competition string) ([]entity.Record, error) {
	competition = strings.TrimSpace(competition)
	if competition == "" {
		return nil, fmt.Errorf("competition is required")
	}

	var envelope scorelineTeamsEnvelope
	path := "/competitions/" + url.PathEscape(competition) + "/teams"
	if err := c.core.doJSON(ctx, path, nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch scoreline teams competition=%s: %w", competition, err)
	}

	return mapScorelineTeams(envelope.Data), nil
}

func (c *ScorelineClient) SearchTeams(ctx context.Context, query string) ([]entity.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	var envelope scorelineTeamsEnvelope
	if err := c.core.doJSON(ctx, "/teams/search", map[string]string{"name": query}, &envelope); err != nil {
		return nil, fmt.Errorf("search scoreline teams query=%s: %w", query, err)
	}

	// Zero hits is an expected outcome, not an error.
	return mapScorelineTeams(envelope.Data), nil
}

func (c *ScorelineClient) TeamByID(ctx context.Context, id string) (entity.Record, error) {
	var envelope scorelineTeamEnvelope
	if err := c.core.doJSON(ctx, "/teams/"+url.PathEscape(id), nil, &envelope); err != nil {
		return entity.Record{}, fmt.Errorf("fetch scoreline team id=%s: %w", id, err)
	}
	if envelope.Data.ID <= 0 {
		return entity.Record{}, fmt.Errorf("fetch scoreline team id=%s: empty payload", id)
	}

	return scorelineRecord(envelope.Data), nil
}

func (c *ScorelineClient) TeamFixtures(ctx context.Context, teamID string) ([]entity.Fixture, error) {
	var envelope scorelineFixturesEnvelope
	path := "/teams/" + url.PathEscape(teamID) + "/fixtures"
	if err := c.core.doJSON(ctx, path, nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch scoreline fixtures team_id=%s: %w", teamID, err)
	}

	out := make([]entity.Fixture, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		if item.ID <= 0 {
			continue
		}
		out = append(out, entity.Fixture{
			Provider: entity.ProviderScoreline,
			ID:       strconv.FormatInt(item.ID, 10),
			HomeID:   strconv.FormatInt(item.HomeID, 10),
			HomeName: strings.TrimSpace(item.HomeName),
			AwayID:   strconv.FormatInt(item.AwayID, 10),
			AwayName: strings.TrimSpace(item.AwayName),
		})
	}

	return out, nil
}

func mapScorelineTeams(items []scorelineTeam) []entity.Record {
	out := make([]entity.Record, 0, len(items))
	for _, item := range items {
		if item.ID <= 0 || strings.TrimSpace(item.Name) == "" {
			continue
		}
		out = append(out, scorelineRecord(item))
	}
	return out
}

func scorelineRecord(item scorelineTeam) entity.Record {
	return entity.Record{
		Provider: entity.ProviderScoreline,
		ID:       strconv.FormatInt(item.ID, 10),
		Name:     strings.TrimSpace(item.Name),
	}
}
