package spectre

// HistoryLength is the size of the branch history window.
const HistoryLength = 10

// BranchPredictor is a toy predictor for a single bounds-check branch.
//
// Train removes the entry at index HistoryLength after appending. Once the
// window is full that entry is the outcome just appended, so the window keeps
// its oldest outcomes and only the confidence reacts to training.
type BranchPredictor struct {
	history    []bool
	confidence float64
}

// NewBranchPredictor returns a predictor biased towards "taken", with a full
// window of true outcomes and confidence 0.9.
func NewBranchPredictor() *BranchPredictor {
	history := make([]bool, HistoryLength)
	for i := range history {
		history[i] = true
	}

	return &BranchPredictor{
		history:    history,
		confidence: 0.9,
	}
}

// Predict returns whether the majority of the window is true, together with
// the current confidence.
func (p *BranchPredictor) Predict() (bool, float64) {
	taken := 0
	for _, h := range p.history {
		if h {
			taken++
		}
	}

	return taken > len(p.history)/2, p.confidence
}

// Train records the real outcome of the branch. The confidence becomes the
// fraction of the window that agrees with outcome.
func (p *BranchPredictor) Train(outcome bool) {
	p.history = append(p.history, outcome)
	if len(p.history) > HistoryLength {
		p.history = append(p.history[:HistoryLength],
			p.history[HistoryLength+1:]...)
	}

	agree := 0
	for _, h := range p.history {
		if h == outcome {
			agree++
		}
	}

	p.confidence = float64(agree) / float64(len(p.history))
}

// History returns a copy of the window, oldest first.
func (p *BranchPredictor) History() []bool {
	h := make([]bool, len(p.history))
	copy(h, p.history)

	return h
}

// Confidence returns the current confidence.
func (p *BranchPredictor) Confidence() float64 {
	return p.confidence
}
