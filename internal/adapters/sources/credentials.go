package sources

import (
	"context"
	"fmt"
	"math"

	"github.com/okian/repute/internal/domain/decay"
	"github.com/okian/repute/internal/domain/model"
)

// Credential formula constants. Count and issuer diversity both contribute;
// a stack of credentials from a single issuer scores below the same number
// spread across independent issuers.
const (
	credentialCountShare  = 0.8
	credentialIssuerShare = 0.2
	credentialFullCount   = 10
	credentialFullIssuers = 5
)

// Credential is one issued credential observed for a subject.
type Credential struct {
	SubjectID  string `json:"subject_id"`
	Issuer     string `json:"issuer"`
	Revoked    bool   `json:"revoked"`
	IssuedAtMs int64  `json:"issued_at_ms"`
}

// CredentialDirectory is the backing query a credential collector reads from.
type CredentialDirectory interface {
	CredentialsFor(ctx context.Context, subjectID string) ([]Credential, error)
}

// CredentialCollector scores a subject's issued credentials: how many remain
// valid and from how many distinct issuers, decayed by issuance recency.
type CredentialCollector struct {
	dir CredentialDirectory
	cfg Settings
}

// NewCredentialCollector creates a credential collector over the directory.
func NewCredentialCollector(dir CredentialDirectory, cfg Settings) *CredentialCollector {
	return &CredentialCollector{dir: dir, cfg: cfg}
}

// Name identifies the source this collector speaks for.
func (c *CredentialCollector) Name() string { return SourceCredentials }

// Collect builds the credentials contribution for a subject. Revoked
// credentials still count as observations (the subject was checked) but
// contribute nothing to the score.
func (c *CredentialCollector) Collect(ctx context.Context, subjectID string, nowMs int64) (model.SourceScore, error) {
	creds, err := c.dir.CredentialsFor(ctx, subjectID)
	if err != nil {
		return model.SourceScore{}, fmt.Errorf("query credentials: %w", err)
	}
	n := len(creds)
	if n == 0 {
		return model.EmptySignal(SourceCredentials), nil
	}

	valid := 0
	issuers := make(map[string]struct{})
	var last int64
	for _, cr := range creds {
		if !cr.Revoked {
			valid++
			issuers[cr.Issuer] = struct{}{}
		}
		if cr.IssuedAtMs > last {
			last = cr.IssuedAtMs
		}
	}

	countScore := math.Min(1, float64(valid)/credentialFullCount)
	diversity := math.Min(1, float64(len(issuers))/credentialFullIssuers)
	base := (credentialCountShare*countScore + credentialIssuerShare*diversity) * model.MaxScore

	factor := decay.Factor(last, nowMs, c.cfg.HalfLifeDays)
	return model.SourceScore{
		Source:      SourceCredentials,
		RawScore:    base * factor,
		Weight:      c.cfg.Weight,
		Confidence:  confidenceFor(n, c.cfg.MinPointsForFullConfidence),
		DataPoints:  n,
		DecayFactor: factor,
		LastUpdated: last,
	}, nil
}
