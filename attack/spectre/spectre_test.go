package spectre

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/l1es/mem/cache"
)

var _ = Describe("Simulator", func() {
	var s *Simulator

	BeforeEach(func() {
		s = NewSimulator()
	})

	It("should use the default layout", func() {
		Expect(string(s.Memory())).To(Equal(DefaultSecret))
		Expect(s.Bound()).To(Equal(len(DefaultSecret)))
		Expect(s.Cache().NumSets()).To(Equal(64))
		Expect(s.Cache().Associativity()).To(Equal(8))
		Expect(s.ProbeArray().Address(0)).To(Equal(DefaultProbeBase))
		Expect(s.ProbeArray().Address(1)).To(Equal(DefaultProbeBase + 64))
	})

	It("should refuse a bound beyond memory", func() {
		Expect(func() {
			MakeBuilder().WithMemory([]byte("abc")).WithBound(4).Build()
		}).To(Panic())
	})

	It("should return in-bound bytes architecturally", func() {
		b, ok := s.VictimFunction(0)

		Expect(ok).To(BeTrue())
		Expect(b).To(Equal(byte('S')))
	})

	It("should leave the read value in the probe array", func() {
		s.VictimFunction(2)

		b, ok := s.ExtractSecretByte()
		Expect(ok).To(BeTrue())
		Expect(b).To(Equal(byte('C')))
	})

	It("should deny an out-of-bound index but keep the side effect", func() {
		b, ok := s.VictimFunction(len(DefaultSecret) + 5)

		Expect(ok).To(BeFalse())
		Expect(b).To(BeZero())

		leaked, found := s.ExtractSecretByte()
		Expect(found).To(BeTrue())
		Expect(leaked).To(Equal(OutOfRangeByte))
	})

	It("should treat negative indices as out of bounds", func() {
		_, ok := s.VictimFunction(-1)

		Expect(ok).To(BeFalse())
	})

	It("should stop speculating after a misprediction", func() {
		s.VictimFunction(100)
		s.FlushProbeArray()

		s.VictimFunction(100)

		_, found := s.ExtractSecretByte()
		Expect(found).To(BeFalse())
	})

	It("should see stale training footprints without a flush", func() {
		for i := 0; i < 10; i++ {
			s.VictimFunction(i % 5)
		}
		s.VictimFunction(len(DefaultSecret) + 5)

		leaked, _ := s.ExtractSecretByte()
		Expect(leaked).To(Equal(byte('C')))
	})

	It("should find nothing in a flushed probe array", func() {
		s.VictimFunction(0)
		s.FlushProbeArray()

		_, found := s.ExtractSecretByte()
		Expect(found).To(BeFalse())
	})

	Context("leaking", func() {
		BeforeEach(func() {
			s = MakeBuilder().
				WithMemory([]byte("public__SECRET")).
				WithBound(8).
				Build()
		})

		It("should retrain before each attack", func() {
			s.VictimFunction(100)

			b, ok := s.LeakByte(8, 5)
			Expect(ok).To(BeTrue())
			Expect(b).To(Equal(byte('S')))
		})

		It("should fail without training after a misprediction", func() {
			s.VictimFunction(100)

			_, ok := s.LeakByte(8, 0)
			Expect(ok).To(BeFalse())
		})

		It("should leak the bytes behind the bound", func() {
			Expect(string(s.Leak(6, 5))).To(Equal("SECRET"))
		})

		It("should read the sentinel past the end of memory", func() {
			leaked := s.Leak(8, 5)

			Expect(leaked).To(HaveLen(8))
			Expect(leaked[6:]).To(Equal([]byte{OutOfRangeByte, OutOfRangeByte}))
		})

		It("should stop at the first failed byte", func() {
			Expect(s.Leak(3, 0)).To(Equal([]byte("S")))
		})
	})

	It("should run on a custom cache", func() {
		c := cache.New(16, 16, 64)
		s = MakeBuilder().WithCache(c).Build()

		Expect(s.Cache()).To(BeIdenticalTo(c))
		b, ok := s.LeakByte(3, 4)
		Expect(ok).To(BeTrue())
		Expect(b).To(Equal(byte('R')))
	})
})
