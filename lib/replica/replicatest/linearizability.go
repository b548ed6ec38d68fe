package replicatest

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/anishathalye/porcupine"
)

type registerOp uint8

const (
	opGet registerOp = iota
	opCompareAndSet
)

type registerInput struct {
	op       registerOp
	expected string
	updated  string
}

type registerOutput struct {
	value string // opGet
	ok    bool   // opCompareAndSet
}

// registerModel is a single byte register; state is the current value as a string.
var registerModel = porcupine.Model{
	Init: func() interface{} { return "" },
	Step: func(state, input, output interface{}) (bool, interface{}) {
		st := state.(string)
		in := input.(registerInput)
		out := output.(registerOutput)
		switch in.op {
		case opGet:
			return out.value == st, st
		default:
			if st == in.expected {
				return out.ok, in.updated
			}
			return !out.ok, st
		}
	},
	Equal: func(a, b interface{}) bool { return a.(string) == b.(string) },
	DescribeOperation: func(input, output interface{}) string {
		in := input.(registerInput)
		out := output.(registerOutput)
		if in.op == opGet {
			return fmt.Sprintf("get() -> %q", out.value)
		}
		return fmt.Sprintf("cas(%q, %q) -> %t", in.expected, in.updated, out.ok)
	},
}

// testLinearizable records a concurrent history of reads and compare-and-sets
// on one register and checks it with porcupine.
func testLinearizable(t *testing.T, b Backend) {
	defer b.Close()
	h := b.Value("linearizable")

	const clients, ops = 4, 30
	start := time.Now()
	now := func() int64 { return time.Since(start).Nanoseconds() }

	var (
		mu      sync.Mutex
		history []porcupine.Operation
		wg      sync.WaitGroup
	)
	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(int64(c)))
			last := ""
			for i := 0; i < ops; i++ {
				var in registerInput
				var out registerOutput

				call := now()
				if rnd.Intn(2) == 0 {
					in.op = opGet
					v, err := h.Get(context.Background())
					if err != nil {
						t.Errorf("Get failed: %v", err)
						return
					}
					out.value = string(v)
					last = out.value
				} else {
					in = registerInput{op: opCompareAndSet, expected: last, updated: fmt.Sprintf("c%d-%d", c, i)}
					ok, err := h.CompareAndSet(context.Background(), []byte(in.expected), []byte(in.updated))
					if err != nil {
						t.Errorf("CompareAndSet failed: %v", err)
						return
					}
					out.ok = ok
					if ok {
						last = in.updated
					}
				}
				ret := now()

				mu.Lock()
				history = append(history, porcupine.Operation{ClientId: c, Input: in, Call: call, Output: out, Return: ret})
				mu.Unlock()
			}
		}(c)
	}
	wg.Wait()

	if !porcupine.CheckOperations(registerModel, history) {
		t.Errorf("history of %d operations is not linearizable", len(history))
	}
}
