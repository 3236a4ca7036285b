// Package verifier is the orchestrator tying the breadcrumb Chain
// Validator, Displacement Extractor, Spectral Analyzer, Heavy-Tail
// Fitter, Mobility Profiler, Hamiltonian Scorer, Criticality Engine,
// Challenge Coordinator, and Certificate Issuer into the request
// handlers application.ServerBase dispatches to.
package verifier

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GNS-Foundation/trip-protocol/breadcrumb"
	"github.com/GNS-Foundation/trip-protocol/certificate"
	"github.com/GNS-Foundation/trip-protocol/challenge"
	"github.com/GNS-Foundation/trip-protocol/criticality"
	"github.com/GNS-Foundation/trip-protocol/crypto/sign"
	"github.com/GNS-Foundation/trip-protocol/displacement"
	"github.com/GNS-Foundation/trip-protocol/hamiltonian"
	"github.com/GNS-Foundation/trip-protocol/heavytail"
	"github.com/GNS-Foundation/trip-protocol/internal/log"
	"github.com/GNS-Foundation/trip-protocol/internal/ratelimit"
	"github.com/GNS-Foundation/trip-protocol/mobility"
	"github.com/GNS-Foundation/trip-protocol/protocol"
	"github.com/GNS-Foundation/trip-protocol/spectral"
	"github.com/GNS-Foundation/trip-protocol/storage"
	"github.com/GNS-Foundation/trip-protocol/storage/kv"
)

// identityState is the Verifier's live in-memory state for one
// identity: its validated chain, its mobility profile, and the rolling
// Hamiltonian baseline, all of which are too hot-path to round-trip
// through storage on every request.
type identityState struct {
	mu       sync.Mutex
	chain    *breadcrumb.Chain
	profile  *mobility.Profile
	baseline *hamiltonian.Baseline
}

// Service is the Verifier's stateful core. One Service instance backs
// a running server process.
type Service struct {
	db     kv.DB
	chains *storage.ChainStore
	profiles *storage.ProfileStore
	keys   *storage.KeyStore

	verifierKey      sign.PrivateKey
	verifierIdentity sign.PublicKey

	policy       breadcrumb.Policy
	coordinator  *challenge.Coordinator
	submitLimit  *ratelimit.Keyed
	verifyLimit  *ratelimit.Keyed

	logger *log.Logger

	mu     sync.Mutex
	states map[string]*identityState
}

// NewService constructs a Service backed by db, generating and
// persisting the Verifier's own signing key on first run.
func NewService(db kv.DB, logger *log.Logger) (*Service, error) {
	keys := storage.NewKeyStore(db)
	verifierKey, err := keys.LoadOrCreate()
	if err != nil {
		return nil, err
	}
	verifierIdentity := verifierKey.Public()

	return &Service{
		db:               db,
		chains:           storage.NewChainStore(db),
		profiles:         storage.NewProfileStore(db),
		keys:             keys,
		verifierKey:      verifierKey,
		verifierIdentity: verifierIdentity,
		policy:           breadcrumb.DefaultPolicy(),
		coordinator:      challenge.NewCoordinator(),
		submitLimit:      ratelimit.New(5, 10, 10*time.Minute),
		verifyLimit:      ratelimit.New(1, 3, 10*time.Minute),
		logger:           logger,
		states:           make(map[string]*identityState),
	}, nil
}

// VerifierIdentity returns the Verifier's own public signing key, the
// one certificates are issued under.
func (s *Service) VerifierIdentity() sign.PublicKey { return s.verifierIdentity }

// HandleRequest dispatches a decoded protocol.Request to the matching
// handler. It is the function application.ServerBase.ListenAndHandle
// is wired to call under the server base's per-request lock.
func (s *Service) HandleRequest(req *protocol.Request) *protocol.Response {
	reqID := uuid.New().String()
	s.logger.Info("request received", "request_id", reqID, "type", req.Type)

	switch body := req.Body.(type) {
	case *protocol.SubmissionRequest:
		return s.handleSubmission(body)
	case *protocol.VerificationRequest:
		return s.handleVerification(body)
	case *protocol.LivenessResponse:
		return s.handleChallengeResponse(body)
	case *protocol.CancelRequest:
		return s.handleCancel(body)
	default:
		return protocol.NewErrorResponse(protocol.MalformedEncoding)
	}
}

func identityKey(id sign.PublicKey) string { return string(id) }

func (s *Service) stateFor(identity sign.PublicKey) (*identityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := identityKey(identity)
	if st, ok := s.states[key]; ok {
		return st, nil
	}

	chain, err := s.chains.Load(identity, s.policy)
	if err != nil {
		return nil, err
	}
	if chain == nil {
		chain = breadcrumb.NewChain(identity)
	}
	profile := mobility.NewProfile()
	profile.SetDistanceFunc(cellDistanceKM)
	replayIntoProfile(profile, chain)
	if chain.Len() >= breadcrumb.DefaultEpochSize {
		profile.RebuildTransitionMatrix()
	}

	st := &identityState{
		chain:    chain,
		profile:  profile,
		baseline: hamiltonian.NewBaseline(),
	}
	s.states[key] = st
	return st, nil
}

// cellDistanceKM adapts displacement.Centroid/Haversine into a
// mobility.DistanceFunc so the profiler can find an observed cell's
// nearest anchor without depending on the displacement package's
// resolution-aware API.
func cellDistanceKM(a, b uint64) float64 {
	latA, lonA := displacement.Centroid(a, displacement.MaxResolution)
	latB, lonB := displacement.Centroid(b, displacement.MaxResolution)
	return displacement.Haversine(latA, lonA, latB, lonB)
}

func replayIntoProfile(profile *mobility.Profile, chain *breadcrumb.Chain) {
	for _, b := range chain.Breadcrumbs {
		profile.Observe(observationOf(b))
	}
}

func observationOf(b *breadcrumb.Breadcrumb) mobility.Observation {
	t := time.Unix(b.Timestamp, 0).UTC()
	return mobility.Observation{
		Cell:      b.Cell,
		Timestamp: b.Timestamp,
		UTCHour:   t.Hour(),
		Weekday:   int(t.Weekday()),
	}
}

// crossedEpochBoundary reports whether extending a chain from lenBefore
// to lenAfter breadcrumbs crossed at least one multiple of
// breadcrumb.DefaultEpochSize, the trigger for rebuilding the Mobility
// Profiler's transition matrix (spec.md §4.5: "at each epoch boundary").
func crossedEpochBoundary(lenBefore, lenAfter int) bool {
	return lenAfter/breadcrumb.DefaultEpochSize > lenBefore/breadcrumb.DefaultEpochSize
}

// handleSubmission extends an identity's chain with a freshly-delivered
// batch of breadcrumbs, per spec.md §4.1's streaming validation model.
func (s *Service) handleSubmission(req *protocol.SubmissionRequest) *protocol.Response {
	if ok, retryAfter := s.submitLimit.Reserve(identityKey(req.Identity)); !ok {
		return rateLimitedResponse(retryAfter)
	}

	crumbs, err := breadcrumb.DecodeAll(req.EncodedBreadcrumbs)
	if err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}

	st, err := s.stateFor(req.Identity)
	if err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	validator := breadcrumb.NewValidator(s.policy)
	lenBefore := st.chain.Len()
	warnings, err := validator.Extend(st.chain, crumbs)
	if err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}
	for _, b := range crumbs {
		st.profile.Observe(observationOf(b))
	}
	if crossedEpochBoundary(lenBefore, st.chain.Len()) {
		st.profile.RebuildTransitionMatrix()
		epochCount := uint64(st.chain.Len() / breadcrumb.DefaultEpochSize)
		if err := storage.WriteEpochCount(s.db, req.Identity, epochCount); err != nil {
			return protocol.NewErrorResponse(protocol.CodeOf(err))
		}
	}

	if err := s.chains.Save(st.chain); err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}
	if err := s.profiles.Save(req.Identity, st.profile); err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}

	resp := &protocol.Response{Error: protocol.Success}
	if len(warnings) > 0 {
		s.logger.Warn("breadcrumb submission accepted with warnings",
			"identity", req.Identity.String(), "warnings", len(warnings))
	}
	return resp
}

// handleVerification begins the active verification protocol: it opens
// a challenge bound to a fresh nonce and returns the LivenessChallenge
// the relying party is expected to deliver to the Attester over its own
// side channel (spec.md §4.8).
func (s *Service) handleVerification(req *protocol.VerificationRequest) *protocol.Response {
	if ok, retryAfter := s.verifyLimit.Reserve(identityKey(req.Identity)); !ok {
		return rateLimitedResponse(retryAfter)
	}

	now := time.Now()
	if _, err := s.coordinator.Request(req.Identity, req.Nonce, now); err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}
	deadline := time.Duration(req.FreshnessWindowSeconds) * time.Second
	ch, err := s.coordinator.Deliver(req.Nonce, now, deadline)
	if err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}

	return &protocol.Response{
		Error: protocol.Success,
		Body: &protocol.LivenessChallenge{
			Nonce:                   ch.Nonce,
			VerifierIdentity:        s.verifierIdentity,
			ChallengeTimestamp:      ch.ChallengedAt.Unix(),
			ResponseDeadlineSeconds: uint32(ch.Deadline.Sub(ch.ChallengedAt).Seconds()),
		},
	}
}

// handleChallengeResponse validates the Attester's signed response and,
// on success, runs the full Criticality Engine pipeline to produce and
// sign a Certificate.
func (s *Service) handleChallengeResponse(resp *protocol.LivenessResponse) *protocol.Response {
	ch, ok := s.coordinator.Lookup(resp.NonceEcho)
	if !ok {
		return protocol.NewErrorResponse(protocol.NonceMismatch)
	}

	st, err := s.stateFor(ch.Identity)
	if err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	var headHash [32]byte
	copy(headHash[:], st.chain.HeadHash())

	if _, err := s.coordinator.Respond(resp, time.Now(), challenge.ValidationInputs{
		VerifierHeadHash: headHash,
		VerifierIndex:    st.chain.HeadIndex(),
	}); err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}
	if _, err := s.coordinator.Evaluate(resp.NonceEcho); err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}

	cert, verdict, err := s.issueCertificate(ch.Identity, resp.NonceEcho, headHash, st)
	if err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}

	if _, err := s.coordinator.Complete(resp.NonceEcho); err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}

	s.logger.Info("verification complete",
		"identity", ch.Identity.String(),
		"classification", string(verdict.Classification),
		"alert", string(verdict.AlertLevel))

	return &protocol.Response{Error: protocol.Success, Body: cert.CanonicalEncoding()}
}

// issueCertificate runs the Displacement Extractor, Spectral Analyzer,
// Heavy-Tail Fitter, Hamiltonian Scorer and Criticality Engine over the
// identity's current chain and mobility profile, then signs the
// resulting certificate under the Verifier's own key.
func (s *Service) issueCertificate(identity sign.PublicKey, nonce [protocol.NonceSize]byte, headHash [32]byte, st *identityState) (*certificate.Certificate, criticality.Verdict, error) {
	points := make([]displacement.CellPoint, st.chain.Len())
	for i, b := range st.chain.Breadcrumbs {
		points[i] = displacement.CellPoint{Cell: b.Cell, Resolution: b.Resolution, Timestamp: b.Timestamp}
	}
	series := displacement.Extract(points)
	magnitudes := displacement.Magnitudes(series)

	// The Spectral Analyzer and Heavy-Tail Fitter both run over the same
	// read-only magnitudes slice and share no state, so they run
	// concurrently rather than back to back.
	var specResult *spectral.Result
	var fit *heavytail.Result
	var beta, kappaKM float64
	var g errgroup.Group
	g.Go(func() error {
		if r, err := spectral.Analyze(magnitudes, spectral.DefaultBands()); err == nil {
			specResult = r
		}
		return nil
	})
	g.Go(func() error {
		if r, err := heavytail.FitDefault(magnitudes); err == nil {
			fit = r
			beta, kappaKM = r.Beta, r.KappaKM
		}
		return nil
	})
	g.Wait()

	predictability := st.profile.Predictability()

	spatialDensity := mobility.HistogramFloor
	if fit != nil && len(magnitudes) > 0 {
		if d := fit.Density(magnitudes[len(magnitudes)-1], heavytail.DefaultXMin); d > 0 {
			spatialDensity = d
		}
	}
	transitionProb := mobility.HistogramFloor
	if from, to, ok := st.profile.CurrentTransition(); ok {
		transitionProb = st.profile.TransitionProbability(from, to)
	}

	components := hamiltonian.Components{
		Spatial:   hamiltonian.SpatialEnergy(spatialDensity),
		Temporal:  hamiltonian.TemporalEnergy(st.profile.HourDensity(time.Now().UTC().Hour()), st.profile.WeekdayDensity(int(time.Now().UTC().Weekday()))),
		Kinetic:   hamiltonian.KineticEnergy(transitionProb),
		Structure: chainStructureEnergy(st.chain),
	}
	maturity := hamiltonian.Maturity(st.chain.Len())
	currentH := hamiltonian.Score(components, hamiltonian.DefaultWeights(), maturity)
	baselineH := st.baseline.Median()
	st.baseline.Observe(currentH)

	daysSinceFirst := 0.0
	if st.chain.Len() > 0 {
		first := st.chain.Breadcrumbs[0]
		daysSinceFirst = time.Since(time.Unix(first.Timestamp, 0)).Hours() / 24
	}
	trust := criticality.TrustInputs{
		Count:          st.chain.Len(),
		UniqueCells:    st.chain.UniqueCellCount(),
		DaysSinceFirst: daysSinceFirst,
		ChainIntegrity: true,
	}

	verdict := criticality.Evaluate(st.chain.Len(), specResult, beta, kappaKM, predictability, trust, baselineH, currentH)

	epochCount, err := storage.ReadEpochCount(s.db, identity)
	if err != nil {
		return nil, criticality.Verdict{}, err
	}

	cert := &certificate.Certificate{
		Identity:          identity,
		IssuedAt:          time.Now().Unix(),
		EpochCount:        epochCount,
		Alpha:             verdict.Alpha,
		Beta:              verdict.Beta,
		KappaKM:           verdict.KappaKM,
		Predictability:    verdict.Predictability,
		CriticalityConf:   verdict.CriticalityConfidence,
		TrustScore:        verdict.TrustScore,
		UniqueCellCount:   uint64(st.chain.UniqueCellCount()),
		TotalBreadcrumbs:  uint64(st.chain.Len()),
		ValiditySeconds:   3600,
		Nonce:             nonce,
		ChainHeadHash:     headHash,
	}
	cert.Sign(s.verifierKey)

	return cert, verdict, nil
}

// chainStructureEnergy returns the Structure energy's break value for an
// empty chain and 0 for any other chain. Soft interval warnings are not
// counted, so every chain that passed validation scores 0.
func chainStructureEnergy(chain *breadcrumb.Chain) float64 {
	if chain.Len() == 0 {
		return hamiltonian.ChainBreakEnergy
	}
	return 0
}

// handleCancel withdraws an outstanding challenge at the relying
// party's request.
func (s *Service) handleCancel(req *protocol.CancelRequest) *protocol.Response {
	if _, err := s.coordinator.Cancel(req.Nonce); err != nil {
		return protocol.NewErrorResponse(protocol.CodeOf(err))
	}
	return &protocol.Response{Error: protocol.Success}
}

// SweepMaintenance runs the Challenge Coordinator's timeout sweep and
// evicts idle rate-limit buckets. It is wired to application.ServerBase's
// EpochUpdate loop.
func (s *Service) SweepMaintenance() {
	now := time.Now()
	timedOut := s.coordinator.SweepTimeouts(now)
	for _, ch := range timedOut {
		s.logger.Warn("challenge timed out", "identity", ch.Identity.String())
	}
	s.submitLimit.EvictIdle(now)
	s.verifyLimit.EvictIdle(now)
}

func rateLimitedResponse(retryAfter time.Duration) *protocol.Response {
	return protocol.NewErrorResponse(protocol.RateLimited)
}
