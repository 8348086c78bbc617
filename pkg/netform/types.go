package netform

import (
	"github.com/eleven-am/netform/internal/analyzer"
	"github.com/eleven-am/netform/internal/domain"
	"github.com/eleven-am/netform/internal/graph"
	"github.com/eleven-am/netform/internal/reconciler"
)

type TopologySpec = domain.TopologySpec

type Graph = graph.Graph

type ResourceNode = domain.ResourceNode

type ResourceKind = domain.ResourceKind

const (
	KindVPC                   = domain.KindVPC
	KindInternetGateway       = domain.KindInternetGateway
	KindSubnet                = domain.KindSubnet
	KindRouteTable            = domain.KindRouteTable
	KindRouteTableAssociation = domain.KindRouteTableAssociation
)

type Attributes = domain.Attributes

type Visibility = domain.Visibility

const (
	VisibilityPublic  = domain.VisibilityPublic
	VisibilityPrivate = domain.VisibilityPrivate
)

type ResourceRecord = domain.ResourceRecord

type Provider = domain.Provider

type StateStore = domain.StateStore

type Outcome = domain.Outcome

const (
	OutcomeCreated             = domain.OutcomeCreated
	OutcomeAdopted             = domain.OutcomeAdopted
	OutcomeUpdated             = domain.OutcomeUpdated
	OutcomeUnchanged           = domain.OutcomeUnchanged
	OutcomeFailed              = domain.OutcomeFailed
	OutcomeSkipped             = domain.OutcomeSkipped
	OutcomeRequiresReplacement = domain.OutcomeRequiresReplacement
	OutcomeDeleted             = domain.OutcomeDeleted
	OutcomeWouldCreate         = domain.OutcomeWouldCreate
	OutcomeWouldUpdate         = domain.OutcomeWouldUpdate
)

type NodeOutcome = domain.NodeOutcome

type ReconcileResult = domain.ReconcileResult

type Outputs = domain.Outputs

type Warning = domain.Warning

const WarningDanglingResource = domain.WarningDanglingResource

type DriftStatus = domain.DriftStatus

const (
	DriftInSync      = domain.DriftInSync
	DriftDrifted     = domain.DriftDrifted
	DriftMissing     = domain.DriftMissing
	DriftNotRecorded = domain.DriftNotRecorded
	DriftError       = domain.DriftError
)

type DriftReport = domain.DriftReport

type FieldDrift = domain.FieldDrift

type ValidationError = domain.ValidationError

type ValidationReason = domain.ValidationReason

type ProviderError = domain.ProviderError

var (
	ErrNotFound            = domain.ErrNotFound
	ErrStoreUnavailable    = domain.ErrStoreUnavailable
	ErrRequiresReplacement = domain.ErrRequiresReplacement
	ErrDependencyFailed    = domain.ErrDependencyFailed
	ErrCancelled           = domain.ErrCancelled
)

type Finding = analyzer.Finding

type PathTrace = domain.PathTrace

type Hop = domain.Hop

type HopAction = domain.HopAction

const (
	HopActionEntered  = domain.HopActionEntered
	HopActionRouted   = domain.HopActionRouted
	HopActionBlocked  = domain.HopActionBlocked
	HopActionTerminal = domain.HopActionTerminal
)

// Options tunes concurrency, call timeouts, rate limiting, logging and
// metrics of an Engine.
type Options = reconciler.Options

type Metrics = reconciler.Metrics

type GraphFormat = graph.Format

const (
	FormatDOT     = graph.FormatDOT
	FormatMermaid = graph.FormatMermaid
)
