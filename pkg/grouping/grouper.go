// Package grouping clusters support programs into duplicate groups
package grouping

import (
	"context"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/clover/internal/repositories"
	"github.com/Ramsey-B/clover/pkg/events"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/normalizers"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Config contains configuration for the grouping service.
type Config struct {
	AutoMergeThreshold float64 // Confidence at or above which a new group starts as auto (default: 0.85)
	MinMergeConfidence float64 // Minimum confidence to form a group at all (default: 0.5)
	OrgSimilarityFloor float64 // Organizer similarity below which a bucket is split (default: 0.6)
	NameWeight         float64 // Weight of name similarity in merge confidence (default: 0.6)
	OrgWeight          float64 // Weight of organizer similarity (default: 0.25)
	MetaWeight         float64 // Weight of deadline/category agreement (default: 0.15)
}

// DefaultConfig returns sensible defaults. Name similarity carries the most
// weight because title collisions are the dominant false-positive source.
func DefaultConfig() Config {
	return Config{
		AutoMergeThreshold: 0.85,
		MinMergeConfidence: 0.5,
		OrgSimilarityFloor: 0.6,
		NameWeight:         0.6,
		OrgWeight:          0.25,
		MetaWeight:         0.15,
	}
}

// Service clusters the live program catalog into duplicate groups and owns
// reviewer operations on those groups.
type Service struct {
	log      ectologger.Logger
	programs repositories.ProgramRepo
	groups   repositories.DuplicateGroupRepo
	emitter  *events.Emitter
	scorer   *Scorer
	cfg      Config
}

// NewService creates a new grouping service.
func NewService(
	log ectologger.Logger,
	programs repositories.ProgramRepo,
	groups repositories.DuplicateGroupRepo,
	emitter *events.Emitter,
	cfg Config,
) *Service {
	return &Service{
		log:      log,
		programs: programs,
		groups:   groups,
		emitter:  emitter,
		scorer:   NewScorer(),
		cfg:      cfg,
	}
}

// Summary reports what a regroup pass changed.
type Summary struct {
	ProgramsScanned int `json:"programs_scanned"`
	ProgramsSkipped int `json:"programs_skipped"`
	GroupsCreated   int `json:"groups_created"`
	GroupsUpdated   int `json:"groups_updated"`
	GroupsSkipped   int `json:"groups_skipped"`
}

type bucketKey struct {
	name    string
	year    int
	hasYear bool
}

type scoredCluster struct {
	members    []models.SupportProgram
	confidence float64
}

func minProgramID(cluster []models.SupportProgram) string {
	id := cluster[0].ID
	for _, p := range cluster[1:] {
		if p.ID < id {
			id = p.ID
		}
	}
	return id
}

// Regroup scans the live catalog, buckets programs by normalized name and
// project year, splits buckets whose organizers diverge, and upserts one
// duplicate group per surviving cluster. Rejected groups are left alone
// unless their membership changed since the rejection. A non-nil projectYear
// restricts the scan to that year's programs.
func (s *Service) Regroup(ctx context.Context, projectYear *int) (*Summary, error) {
	ctx, span := tracing.StartSpan(ctx, "grouping.Service.Regroup")
	defer span.End()

	log := s.log.WithContext(ctx)

	programs, err := s.programs.ListLive(ctx)
	if err != nil {
		return nil, err
	}

	if projectYear != nil {
		filtered := programs[:0]
		for _, p := range programs {
			if p.ProjectYear != nil && *p.ProjectYear == *projectYear {
				filtered = append(filtered, p)
			}
		}
		programs = filtered
	}

	summary := &Summary{ProgramsScanned: len(programs)}

	buckets := make(map[bucketKey][]models.SupportProgram)
	for _, p := range programs {
		name := normalizers.NormalizeTitle(p.Name)
		if name == "" {
			log.WithField("program_id", p.ID).Warn("Skipping program with unusable name")
			summary.ProgramsSkipped++
			continue
		}

		key := bucketKey{name: name}
		if p.ProjectYear != nil {
			key.year = *p.ProjectYear
			key.hasYear = true
		}
		buckets[key] = append(buckets[key], p)
	}

	for key, members := range buckets {
		if len(members) < 2 {
			continue
		}

		var clusters []scoredCluster
		for _, cluster := range s.splitByOrganizer(members) {
			if len(cluster) < 2 {
				continue
			}

			confidence := s.mergeConfidence(cluster)
			if confidence < s.cfg.MinMergeConfidence {
				continue
			}
			clusters = append(clusters, scoredCluster{members: cluster, confidence: confidence})
		}
		if len(clusters) == 0 {
			continue
		}

		// The group key is unique per (normalized_name, project_year), so
		// same-title programs from unrelated sponsors can only back one group.
		// Keep the largest cluster; letting each cluster upsert in turn would
		// detach the previous cluster's members.
		sort.Slice(clusters, func(i, j int) bool {
			if len(clusters[i].members) != len(clusters[j].members) {
				return len(clusters[i].members) > len(clusters[j].members)
			}
			return minProgramID(clusters[i].members) < minProgramID(clusters[j].members)
		})
		for _, dropped := range clusters[1:] {
			summary.GroupsSkipped++
			log.WithFields(map[string]any{
				"normalized_name": key.name,
				"organizer":       dropped.members[0].Organizer,
				"member_count":    len(dropped.members),
			}).Warn("Same-title cluster from another sponsor skipped")
		}

		keep := clusters[0]
		if err := s.upsertGroup(ctx, key, keep.members, keep.confidence, summary); err != nil {
			log.WithError(err).WithField("normalized_name", key.name).Error("Failed to upsert duplicate group")
			return nil, err
		}
	}

	log.WithFields(map[string]any{
		"programs_scanned": summary.ProgramsScanned,
		"groups_created":   summary.GroupsCreated,
		"groups_updated":   summary.GroupsUpdated,
		"groups_skipped":   summary.GroupsSkipped,
	}).Info("Regroup completed")

	return summary, nil
}

// splitByOrganizer partitions a bucket so that same-title programs from
// clearly different sponsors never land in one group. A program with no
// organizer carries no signal and joins the first cluster.
func (s *Service) splitByOrganizer(members []models.SupportProgram) [][]models.SupportProgram {
	var clusters [][]models.SupportProgram

	for _, p := range members {
		placed := false
		for i, cluster := range clusters {
			if s.organizerSimilarity(p, cluster[0]) >= s.cfg.OrgSimilarityFloor {
				clusters[i] = append(clusters[i], p)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []models.SupportProgram{p})
		}
	}

	return clusters
}

func (s *Service) organizerSimilarity(a, b models.SupportProgram) float64 {
	orgA := normalizers.NormalizeOrg(a.Organizer)
	orgB := normalizers.NormalizeOrg(b.Organizer)
	if orgA == "" || orgB == "" {
		return 1.0
	}
	return s.scorer.TokenSetRatio(orgA, orgB)
}

// mergeConfidence combines name similarity, organizer agreement and metadata
// agreement across all member pairs of a cluster.
func (s *Service) mergeConfidence(cluster []models.SupportProgram) float64 {
	var nameSum, orgSum, metaSum float64
	pairs := 0

	for i := 0; i < len(cluster); i++ {
		for j := i + 1; j < len(cluster); j++ {
			a, b := cluster[i], cluster[j]
			nameSum += s.scorer.JaroWinkler(
				normalizers.NormalizeTitle(a.Name),
				normalizers.NormalizeTitle(b.Name),
			)
			orgSum += s.organizerSimilarity(a, b)
			metaSum += s.metadataAgreement(a, b)
			pairs++
		}
	}

	if pairs == 0 {
		return 0.0
	}

	scores := map[string]float64{
		"name": nameSum / float64(pairs),
		"org":  orgSum / float64(pairs),
		"meta": metaSum / float64(pairs),
	}
	weights := map[string]float64{
		"name": s.cfg.NameWeight,
		"org":  s.cfg.OrgWeight,
		"meta": s.cfg.MetaWeight,
	}

	return s.scorer.WeightedScore(scores, weights)
}

func (s *Service) metadataAgreement(a, b models.SupportProgram) float64 {
	category := s.scorer.ExactMatch(a.Category, b.Category, false)

	deadline := 0.0
	switch {
	case a.Deadline == nil && b.Deadline == nil:
		deadline = 1.0
	case a.Deadline != nil && b.Deadline != nil:
		deadline = s.scorer.DateProximity(*a.Deadline, *b.Deadline, 30)
	}

	return (category + deadline) / 2
}

func (s *Service) upsertGroup(ctx context.Context, key bucketKey, cluster []models.SupportProgram, confidence float64, summary *Summary) error {
	var yearPtr *int
	if key.hasYear {
		year := key.year
		yearPtr = &year
	}

	canonical := pickCanonical(cluster)
	memberIDs := make([]string, 0, len(cluster))
	for _, p := range cluster {
		memberIDs = append(memberIDs, p.ID)
	}

	existing, err := s.groups.GetByKey(ctx, key.name, yearPtr)
	if err != nil {
		return err
	}

	if existing == nil {
		group := &models.DuplicateGroup{
			ID:                 uuid.New().String(),
			NormalizedName:     key.name,
			ProjectYear:        yearPtr,
			CanonicalProjectID: canonical.ID,
			MergeConfidence:    confidence,
			ReviewStatus:       models.ReviewStatusPending,
			SourceCount:        len(cluster),
		}
		if confidence >= s.cfg.AutoMergeThreshold {
			group.ReviewStatus = models.ReviewStatusAuto
		}

		if err := s.groups.Create(ctx, group); err != nil {
			return err
		}
		if err := s.programs.AssignGroup(ctx, group.ID, memberIDs, canonical.ID); err != nil {
			return err
		}

		summary.GroupsCreated++
		metrics.RecordGroupChange("created")
		s.emitter.EmitGroupCreated(ctx, group)
		return nil
	}

	current, err := s.programs.ListByGroup(ctx, existing.ID)
	if err != nil {
		return err
	}
	changed := membersChanged(current, memberIDs)

	if existing.ReviewStatus == models.ReviewStatusRejected && !changed {
		// Reviewer already denied this key; same membership stays apart.
		summary.GroupsSkipped++
		return nil
	}

	existing.MergeConfidence = confidence
	existing.CanonicalProjectID = canonical.ID
	existing.SourceCount = len(cluster)
	existing.ReviewStatus = nextReviewStatus(existing.ReviewStatus, changed, confidence >= s.cfg.AutoMergeThreshold)

	if err := s.groups.Update(ctx, existing); err != nil {
		return err
	}
	if err := s.programs.AssignGroup(ctx, existing.ID, memberIDs, canonical.ID); err != nil {
		return err
	}

	summary.GroupsUpdated++
	metrics.RecordGroupChange("updated")
	s.emitter.EmitGroupUpdated(ctx, existing)
	return nil
}

// nextReviewStatus preserves human decisions across recomputation. Confirmed
// stays confirmed, rejected reopens only when membership changed, and the
// machine-owned states track the current confidence.
func nextReviewStatus(current models.ReviewStatus, membersChanged, aboveThreshold bool) models.ReviewStatus {
	switch current {
	case models.ReviewStatusConfirmed:
		return models.ReviewStatusConfirmed
	case models.ReviewStatusRejected:
		if membersChanged {
			return models.ReviewStatusPending
		}
		return models.ReviewStatusRejected
	default:
		if aboveThreshold {
			return models.ReviewStatusAuto
		}
		return models.ReviewStatusPending
	}
}

// pickCanonical selects the canonical member deterministically: the most
// recently updated live, currently open record wins, ties broken by earliest
// creation, then by id for full determinism.
func pickCanonical(cluster []models.SupportProgram) models.SupportProgram {
	ranked := make([]models.SupportProgram, len(cluster))
	copy(ranked, cluster)

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.IsLive() != b.IsLive() {
			return a.IsLive()
		}
		aActive := a.Status == models.ProgramStatusActive
		bActive := b.Status == models.ProgramStatusActive
		if aActive != bActive {
			return aActive
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return ranked[0]
}

func membersChanged(current []models.SupportProgram, next []string) bool {
	if len(current) != len(next) {
		return true
	}
	seen := make(map[string]struct{}, len(current))
	for _, p := range current {
		seen[p.ID] = struct{}{}
	}
	for _, id := range next {
		if _, ok := seen[id]; !ok {
			return true
		}
	}
	return false
}
