package bridge

import (
	"context"
	"errors"

	"github.com/pithecene-io/rpbridge/registry"
	"github.com/pithecene-io/rpbridge/reporting"
	"github.com/pithecene-io/rpbridge/types"
)

// suite returns the open reporter for name, starting one under the launch
// if none is open.
func (b *Bridge) suite(ctx context.Context, name string) (reporting.Reporter, error) {
	if r, ok := b.registry.Suite(name); ok {
		return r, nil
	}

	r, err := b.launch.StartChild(ctx, &reporting.StartItemRequest{
		Name:      name,
		Type:      types.ItemTypeSuite,
		StartTime: b.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := b.registry.AddSuite(name, r); err != nil {
		return nil, err
	}

	b.counts.Suites++
	b.collector.IncSuiteStarted()
	b.logger.Debug("suite started", map[string]any{"suite": name, "item_id": r.ID()})
	return r, nil
}

// test returns the open reporter for name. An unknown name is a test
// boundary: every open test is finished, status is reset, and a new test
// item is started under suite.
func (b *Bridge) test(ctx context.Context, suite reporting.Reporter, name string) (reporting.Reporter, error) {
	if r, ok := b.registry.Test(name); ok {
		return r, nil
	}

	for _, e := range b.registry.Tests() {
		if err := b.finishTest(ctx, e); err != nil {
			return nil, err
		}
	}
	b.status.Reset()

	r, err := suite.StartChild(ctx, &reporting.StartItemRequest{
		Name:      name,
		Type:      types.ItemTypeTest,
		StartTime: b.now(),
	})
	if err != nil {
		return nil, err
	}
	if err := b.registry.AddTest(name, r); err != nil {
		return nil, err
	}

	b.counts.Tests++
	b.collector.IncTestStarted()
	b.logger.Debug("test started", map[string]any{"test": name, "item_id": r.ID()})
	return r, nil
}

// finishTest closes a test with the status observed so far. A duplicate
// finish is swallowed and the entry removed; any other error leaves the
// entry registered.
func (b *Bridge) finishTest(ctx context.Context, e registry.Entry) error {
	st := b.status.FinishStatus()
	err := e.Reporter.Finish(ctx, &reporting.FinishItemRequest{
		EndTime: b.now(),
		Status:  st,
	})
	switch {
	case errors.Is(err, reporting.ErrAlreadyFinished):
		b.collector.IncDuplicateFinish()
		b.logger.Debug("test already finished", map[string]any{"test": e.Name, "item_id": e.Reporter.ID()})
	case err != nil:
		return err
	default:
		passed := st == types.StatusPassed
		if passed {
			b.counts.Passed++
		} else {
			b.counts.Failed++
		}
		b.collector.IncTestFinished(passed)
		b.logger.Debug("test finished", map[string]any{"test": e.Name, "status": string(st)})
	}
	b.registry.RemoveTest(e.Name)
	return nil
}

// finishSuite closes a suite without a status.
func (b *Bridge) finishSuite(ctx context.Context, e registry.Entry) error {
	err := e.Reporter.Finish(ctx, &reporting.FinishItemRequest{EndTime: b.now()})
	switch {
	case errors.Is(err, reporting.ErrAlreadyFinished):
		b.collector.IncDuplicateFinish()
	case err != nil:
		return err
	default:
		b.collector.IncSuiteFinished()
	}
	b.registry.RemoveSuite(e.Name)
	return nil
}
