package spectre

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BranchPredictor", func() {
	var p *BranchPredictor

	BeforeEach(func() {
		p = NewBranchPredictor()
	})

	It("should start biased towards taken", func() {
		predicted, confidence := p.Predict()

		Expect(predicted).To(BeTrue())
		Expect(confidence).To(Equal(0.9))
		Expect(p.History()).To(HaveLen(HistoryLength))
		Expect(p.History()).To(HaveEach(BeTrue()))
	})

	It("should drop the appended outcome from a full window", func() {
		p.Train(false)
		p.Train(false)
		p.Train(false)

		Expect(p.History()).To(HaveEach(BeTrue()))
		predicted, _ := p.Predict()
		Expect(predicted).To(BeTrue())
	})

	It("should measure confidence against the latest outcome", func() {
		p.Train(false)
		Expect(p.Confidence()).To(Equal(0.0))

		p.Train(true)
		Expect(p.Confidence()).To(Equal(1.0))
	})

	It("should count the majority with integer division", func() {
		p.history = []bool{true, true, false, false, false}
		predicted, _ := p.Predict()
		Expect(predicted).To(BeFalse())

		p.history = []bool{true, true, true, false, false}
		predicted, _ = p.Predict()
		Expect(predicted).To(BeTrue())
	})

	It("should grow a short window up to the limit", func() {
		p.history = []bool{false, false}

		p.Train(true)

		Expect(p.History()).To(Equal([]bool{false, false, true}))
		Expect(p.Confidence()).To(BeNumerically("~", 1.0/3.0))
	})

	It("should hand out a copy of the history", func() {
		h := p.History()
		h[0] = false

		Expect(p.History()[0]).To(BeTrue())
	})
})
