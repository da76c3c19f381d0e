package flushreload

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1es/mem/cache"
)

var _ = Describe("Attack", func() {
	var (
		c      *cache.Cache
		attack *Attack
	)

	BeforeEach(func() {
		c = cache.New(16, 4, 64)
		attack = NewAttack(c, DefaultMonitored)
	})

	It("should keep its own copy of the addresses", func() {
		addrs := []uint64{0x0, 0x40}
		a := NewAttack(c, addrs)
		addrs[0] = 0x80

		Expect(a.Monitored()).To(Equal([]uint64{0x0, 0x40}))
	})

	It("should evict monitored lines on flush", func() {
		for _, addr := range DefaultMonitored {
			c.Access(addr)
		}

		attack.Flush()

		for _, addr := range DefaultMonitored {
			Expect(c.Flush(addr)).To(BeFalse())
		}
	})

	It("should flag exactly the address the victim touched", func() {
		attack.Flush()
		c.Access(0x10080)

		Expect(attack.Reload()).To(Equal([]bool{false, false, true, false, false}))
		Expect(attack.AccessTimes()).To(Equal([]uint64{100, 100, 1, 100, 100}))

		accessed, total := attack.Summary()
		Expect(accessed).To(Equal(1))
		Expect(total).To(Equal(5))
	})

	It("should see every line as reloaded when flush is skipped", func() {
		attack.Flush()
		attack.Reload()

		Expect(attack.Reload()).To(HaveEach(BeTrue()))
	})

	It("should clear results between reloads", func() {
		attack.Flush()
		attack.Reload()
		attack.Flush()
		results := attack.Reload()

		Expect(results).To(HaveLen(5))
		Expect(results).To(HaveEach(BeFalse()))
	})

	It("should not flag hits slower than the threshold", func() {
		c = cache.MakeBuilder().
			WithNumSets(16).
			WithWayAssociativity(4).
			WithTimingModel(cache.FixedLatency{HitCycles: 60, MissCycles: 100}).
			Build()
		attack = NewAttack(c, DefaultMonitored)

		attack.Flush()
		c.Access(0x10000)

		Expect(attack.Reload()).To(HaveEach(BeFalse()))
	})

	It("should report an empty summary before any reload", func() {
		accessed, total := attack.Summary()

		Expect(accessed).To(BeZero())
		Expect(total).To(BeZero())
	})
})

var _ = Describe("Scenario", func() {
	DescribeTable("victim behavior",
		func(s Scenario, expected []bool) {
			c := cache.New(16, 4, 64)
			attack := NewAttack(c, DefaultMonitored)

			attack.Flush()
			s.Run(c)

			Expect(attack.Reload()).To(Equal(expected))
		},
		Entry("none", ScenarioNone,
			[]bool{false, false, false, false, false}),
		Entry("pattern1", ScenarioPattern1,
			[]bool{true, true, false, false, false}),
		Entry("pattern2", ScenarioPattern2,
			[]bool{false, false, true, true, false}),
		Entry("noisy", ScenarioNoisy,
			[]bool{true, false, false, false, false}),
	)

	It("should parse names", func() {
		for _, s := range Scenarios() {
			parsed, err := ParseScenario(" " + s.String() + " ")
			Expect(err).ToNot(HaveOccurred())
			Expect(parsed).To(Equal(s))
		}

		_, err := ParseScenario("burst")
		Expect(err).To(HaveOccurred())
	})

	It("should describe itself", func() {
		Expect(ScenarioNoisy.Description()).To(Equal("Victim access hidden in noise"))
		Expect(Scenario(9).String()).To(Equal("Scenario(9)"))
	})

	It("should hide the secret access at the end of the noise", func() {
		addrs := ScenarioNoisy.Addresses()

		Expect(addrs).To(HaveLen(11))
		Expect(addrs[9]).To(Equal(uint64(0x20240)))
		Expect(addrs[10]).To(Equal(uint64(0x10000)))
	})
})
