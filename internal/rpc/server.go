package rpc

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/allocate"
	"github.com/danielpatrickdp/adpc/internal/errs"
	"github.com/danielpatrickdp/adpc/internal/fingerprint"
	"github.com/danielpatrickdp/adpc/internal/logging"
	"github.com/danielpatrickdp/adpc/internal/partition"
)

// #region server-struct
// Server exposes a Core over gRPC.
//
// Fingerprint arguments are read from "fingerprint" (list of numbers) or,
// when absent, from "symbol", which the server encodes first.
//
//	Encode        {symbol}                                   → {fingerprint, dimensions}
//	EncodePhrase  {text}                                     → {fingerprint, dimensions}
//	Region        {fingerprint|symbol}                       → {region}
//	Nearby        {fingerprint|symbol, k}                    → {regions}
//	Similarity    {a, b} (each a symbol or a fingerprint)    → {similarity}
//	Novelty       {region?, fingerprint|symbol}              → {region, novelty}
//	Record        {region?, fingerprint|symbol}              → {region}
//	Allocate      {key, fingerprint|symbol, novelty, growth_threshold?} → {decision}
//	Observe       {symbol, growth_threshold?}                → {symbol, region, novelty, decision}
type Server struct {
	core      *adpc.Core
	logDB     *sql.DB
	versionID string
	logger    *slog.Logger
	health    *health.Server
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithAllocationLog writes every Observe decision to the allocation_log
// table of db, tagged with versionID.
func WithAllocationLog(db *sql.DB, versionID string) ServerOption {
	return func(s *Server) {
		s.logDB = db
		s.versionID = versionID
	}
}

// WithLogger sets the runtime logger. The default discards output.
func WithLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer wraps core.
func NewServer(core *adpc.Core, opts ...ServerOption) *Server {
	s := &Server{
		core:   core,
		logger: slog.New(slog.DiscardHandler),
		health: health.NewServer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds adpc.v1.Core and the standard health service to g.
func (s *Server) Register(g *grpc.Server) {
	g.RegisterService(&ServiceDesc, s)
	healthpb.RegisterHealthServer(g, s.health)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
}

// Shutdown marks every service as not serving.
func (s *Server) Shutdown() {
	s.health.Shutdown()
}
// #endregion server-struct

// #region encode-handlers
func (s *Server) Encode(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	symbol, err := requireString(req, "symbol")
	if err != nil {
		return nil, toStatus(err)
	}
	v, err := s.core.Encode(symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	return fingerprintResponse(v), nil
}

func (s *Server) EncodePhrase(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	text, err := requireString(req, "text")
	if err != nil {
		return nil, toStatus(err)
	}
	v, err := s.core.EncodePhrase(text)
	if err != nil {
		return nil, toStatus(err)
	}
	return fingerprintResponse(v), nil
}

func fingerprintResponse(v fingerprint.Fingerprint) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"fingerprint": fingerprintValue(v),
		"dimensions":  structpb.NewNumberValue(float64(len(v))),
	}}
}
// #endregion encode-handlers

// #region partition-handlers
func (s *Server) Region(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.vector(req)
	if err != nil {
		return nil, toStatus(err)
	}
	id, err := s.core.RegionID(v)
	if err != nil {
		return nil, toStatus(err)
	}
	return regionResponse(id), nil
}

func (s *Server) Nearby(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := s.vector(req)
	if err != nil {
		return nil, toStatus(err)
	}
	k, ok, err := intField(req, "k")
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		return nil, toStatus(errs.Invalid("field \"k\" is required"))
	}
	ids, err := s.core.NearbyRegions(v, k)
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"regions": regionsValue(ids)}}, nil
}

func (s *Server) Similarity(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	a, err := s.operand(req, "a")
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := s.operand(req, "b")
	if err != nil {
		return nil, toStatus(err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"similarity": structpb.NewNumberValue(s.core.CosineSimilarity(a, b)),
	}}, nil
}
// #endregion partition-handlers

// #region familiarity-handlers
func (s *Server) Novelty(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, id, err := s.vectorAndRegion(req)
	if err != nil {
		return nil, toStatus(err)
	}
	n, err := s.core.CalculateNovelty(id, v)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := regionResponse(id)
	resp.Fields["novelty"] = structpb.NewNumberValue(n)
	return resp, nil
}

func (s *Server) Record(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, id, err := s.vectorAndRegion(req)
	if err != nil {
		return nil, toStatus(err)
	}
	if err := s.core.RecordActivation(id, v); err != nil {
		return nil, toStatus(err)
	}
	return regionResponse(id), nil
}

func regionResponse(id partition.RegionID) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{"region": structpb.NewStringValue(string(id))}}
}
// #endregion familiarity-handlers

// #region allocation-handlers
func (s *Server) Allocate(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	key, err := requireString(req, "key")
	if err != nil {
		return nil, toStatus(err)
	}
	v, err := s.vector(req)
	if err != nil {
		return nil, toStatus(err)
	}
	novelty, err := numberField(req, "novelty")
	if err != nil {
		return nil, toStatus(err)
	}
	opts, err := thresholdOption(req)
	if err != nil {
		return nil, toStatus(err)
	}
	d, err := s.core.Allocate(key, v, novelty, opts...)
	if err != nil {
		return nil, toStatus(err)
	}
	if d.Action == allocate.ActionCommit {
		s.logger.Info("concept committed", "key", d.Key, "units", d.CreatedCount)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{"decision": decisionValue(d)}}, nil
}

func (s *Server) Observe(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	symbol, err := requireString(req, "symbol")
	if err != nil {
		return nil, toStatus(err)
	}
	opts, err := thresholdOption(req)
	if err != nil {
		return nil, toStatus(err)
	}
	obs, err := s.core.Observe(symbol, opts...)
	if err != nil {
		return nil, toStatus(err)
	}
	if obs.Decision.Action == allocate.ActionCommit {
		s.logger.Info("concept committed", "key", obs.Decision.Key, "region", obs.Region, "units", obs.Decision.CreatedCount)
	}
	if s.logDB != nil {
		entry, err := logging.EntryFromObservation(obs, s.versionID)
		if err == nil {
			err = logging.LogAllocation(s.logDB, entry)
		}
		if err != nil {
			s.logger.Warn("allocation log write failed", "key", obs.Decision.Key, "err", err)
		}
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"symbol":   structpb.NewStringValue(obs.Symbol),
		"region":   structpb.NewStringValue(string(obs.Region)),
		"novelty":  structpb.NewNumberValue(obs.Novelty),
		"decision": decisionValue(obs.Decision),
	}}, nil
}

func thresholdOption(req *structpb.Struct) ([]allocate.Option, error) {
	n, ok, err := intField(req, "growth_threshold")
	if err != nil || !ok {
		return nil, err
	}
	return []allocate.Option{allocate.WithGrowthThreshold(n)}, nil
}
// #endregion allocation-handlers

// #region arguments
// vector reads "fingerprint", falling back to encoding "symbol".
func (s *Server) vector(req *structpb.Struct) (fingerprint.Fingerprint, error) {
	if v, ok := req.GetFields()["fingerprint"]; ok {
		return fingerprintFrom(v)
	}
	symbol, ok := stringField(req, "symbol")
	if !ok {
		return nil, errs.Invalid("either \"fingerprint\" or \"symbol\" is required")
	}
	return s.core.Encode(symbol)
}

// vectorAndRegion derives the region from the vector when "region" is absent.
func (s *Server) vectorAndRegion(req *structpb.Struct) (fingerprint.Fingerprint, partition.RegionID, error) {
	v, err := s.vector(req)
	if err != nil {
		return nil, "", err
	}
	if id, ok := stringField(req, "region"); ok {
		return v, partition.RegionID(id), nil
	}
	id, err := s.core.RegionID(v)
	if err != nil {
		return nil, "", err
	}
	return v, id, nil
}

// operand accepts a symbol string or a fingerprint list under name.
func (s *Server) operand(req *structpb.Struct, name string) (fingerprint.Fingerprint, error) {
	v, ok := req.GetFields()[name]
	if !ok {
		return nil, errs.Invalid("field %q is required", name)
	}
	if str, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		return s.core.Encode(str.StringValue)
	}
	return fingerprintFrom(v)
}
// #endregion arguments

// #region status
func toStatus(err error) error {
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errs.ErrConfiguration):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
// #endregion status
