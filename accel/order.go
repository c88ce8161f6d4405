package accel

import (
	"context"
	"fmt"

	"GPU_procedural_raytracing/common"
)

type OpKind uint8

const (
	OpBuildBottom OpKind = iota
	OpBuildTop
	OpBarrier
)

func (k OpKind) String() string {
	switch k {
	case OpBuildBottom:
		return "build-bottom"
	case OpBuildTop:
		return "build-top"
	default:
		return "barrier"
	}
}

// Op is one recorded command.
type Op struct {
	Kind    OpKind
	Target  Handle
	Barrier Barrier
}

// Trace is the command sequence of one submission in recording order.
type Trace []Op

// ValidateOrder checks a build submission for the hazards that corrupt or race acceleration structures:
//   - two builds without a build to build barrier between them (they share scratch memory and later builds
//     read earlier results)
//   - a bottom level build after the top level build that consumes it
//   - a structure built twice, or no top level build at all
//   - a top level build that is not followed by a barrier publishing it to the tracing stages
func ValidateOrder(trace Trace) error {
	var (
		built       = make(map[Handle]bool)
		pending     = false
		topIndex    = -1
		lastBuildAt = -1
	)
	for i, op := range trace {
		switch op.Kind {
		case OpBarrier:
			if op.Barrier.OrdersBuilds() {
				pending = false
			}
		case OpBuildBottom, OpBuildTop:
			if pending {
				return fmt.Errorf("%w: op %d (%s) follows op %d", ErrMissingBarrier, i, op.Kind, lastBuildAt)
			}
			if built[op.Target] {
				return fmt.Errorf("%w: handle %d at op %d", ErrDuplicateBuild, op.Target, i)
			}
			if op.Kind == OpBuildBottom && topIndex >= 0 {
				return fmt.Errorf("%w: op %d", ErrTopLevelBeforeBottom, i)
			}
			if op.Kind == OpBuildTop {
				if topIndex >= 0 {
					return fmt.Errorf("%w: second top level build at op %d", ErrDuplicateBuild, i)
				}
				topIndex = i
			}
			built[op.Target] = true
			pending = true
			lastBuildAt = i
		}
	}
	if topIndex < 0 {
		return ErrNoTopLevel
	}
	for _, op := range trace[topIndex+1:] {
		if op.Kind == OpBarrier && op.Barrier.PublishesToTrace() {
			return nil
		}
	}
	return ErrUnpublishedTopLevel
}

// RecordingStream forwards to an inner stream and keeps the Trace of everything recorded.
type RecordingStream struct {
	Inner CommandStream
	Trace Trace
}

func (r *RecordingStream) BuildBottomLevel(dst Handle, g GeometryDescriptor, scratch *common.Buffer) {
	r.Trace = append(r.Trace, Op{Kind: OpBuildBottom, Target: dst})
	r.Inner.BuildBottomLevel(dst, g, scratch)
}

func (r *RecordingStream) BuildTopLevel(dst Handle, instances *common.Buffer, count uint32, scratch *common.Buffer) {
	r.Trace = append(r.Trace, Op{Kind: OpBuildTop, Target: dst})
	r.Inner.BuildTopLevel(dst, instances, count, scratch)
}

func (r *RecordingStream) Barrier(b Barrier) {
	r.Trace = append(r.Trace, Op{Kind: OpBarrier, Barrier: b})
	r.Inner.Barrier(b)
}

func (r *RecordingStream) Submit(ctx context.Context) error {
	return r.Inner.Submit(ctx)
}
