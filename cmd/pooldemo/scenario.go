package main

import (
	"fmt"
	"log"
)

// scenarioStep records the pool counters after one step of the scenario.
type scenarioStep struct {
	Step string `json:"step"`
	Size int    `json:"size"`
	Free int    `json:"free"`
	Idle int    `json:"idle"`
}

// runScenario replays the reference walk-through against an empty pool of
// capacity two: two nested checkouts, a release, a reuse and finally an
// exhausted checkout.
func runScenario(logger *log.Logger, p *counterPool) ([]scenarioStep, error) {
	if p.Size() != 0 || p.MaxSize() != 2 {
		return nil, fmt.Errorf("scenario needs an empty pool of size 2, got size=%d max=%d", p.Size(), p.MaxSize())
	}
	var steps []scenarioStep
	record := func(step string) {
		s := scenarioStep{Step: step, Size: p.Size(), Free: p.Free(), Idle: p.IdleCount()}
		steps = append(steps, s)
		logger.Printf("%s: size=%d free=%d idle=%d", step, s.Size, s.Free, s.Idle)
	}

	logger.Printf("initialized object pool with max size of %d", p.MaxSize())
	record("init")

	inst, ok := p.Checkout()
	if !ok {
		return steps, fmt.Errorf("first checkout exhausted")
	}
	defer inst.Release()
	inst.Value().Increment()
	logger.Print(inst.Value())
	record("checkout")

	err := func() error {
		inst2, ok := p.Checkout()
		if !ok {
			return fmt.Errorf("nested checkout exhausted")
		}
		defer inst2.Release()
		inst.Value().Increment()
		logger.Print(inst.Value())
		logger.Printf("instance 2 pointer is %p", inst2.Value())
		record("nested checkout")
		return nil
	}()
	if err != nil {
		return steps, err
	}
	record("nested release")

	inst2, ok := p.Checkout()
	if !ok {
		return steps, fmt.Errorf("reuse checkout exhausted")
	}
	defer inst2.Release()
	logger.Printf("instance 2 pointer is %p", inst2.Value())
	record("reuse")

	inst3, ok := p.Checkout()
	if ok {
		inst3.Release()
		return steps, fmt.Errorf("third checkout should be exhausted")
	}
	if !p.IsIdleEmpty() {
		return steps, fmt.Errorf("idle set should be empty while both instances are checked out")
	}
	logger.Printf("pool is empty, all objects are in use")
	record("exhausted")
	return steps, nil
}
