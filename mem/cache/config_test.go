package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	DescribeTable("geometry",
		func(config Config, numSets, ways int) {
			Expect(config.NumSets()).To(Equal(numSets))
			Expect(config.Associativity()).To(Equal(ways))
			Expect(config.Validate()).To(Succeed())
		},
		Entry("direct mapped", DirectMappedConfig(16*1024, 64), 256, 1),
		Entry("2-way", SetAssociativeConfig(32*1024, 64, 2, LRU), 256, 2),
		Entry("8-way", SetAssociativeConfig(32*1024, 64, 8, LRU), 64, 8),
		Entry("fully associative",
			FullyAssociativeConfig(8*1024, 64, LRU), 1, 128),
	)

	It("should name configurations", func() {
		Expect(SetAssociativeConfig(32*1024, 64, 4, FIFO).Name).
			To(Equal("4-way 32KB, 64-byte lines, FIFO"))
		Expect(DirectMappedConfig(16*1024, 64).Name).
			To(Equal("Direct Mapped 16KB, 64-byte lines"))
	})

	DescribeTable("invalid geometry",
		func(config Config) {
			err := config.Validate()
			Expect(errors.Is(err, ErrInvalidGeometry)).To(BeTrue())
		},
		Entry("line size not a power of two",
			SetAssociativeConfig(3*1024, 48, 2, LRU)),
		Entry("set count not a power of two",
			SetAssociativeConfig(3*1024, 64, 2, LRU)),
		Entry("zero ways", SetAssociativeConfig(1024, 64, 0, LRU)),
		Entry("too small", SetAssociativeConfig(64, 64, 2, LRU)),
		Entry("partial set", FullyAssociativeConfig(100, 64, LRU)),
	)

	It("should return the error from NewFromConfig", func() {
		c, err := NewFromConfig(SetAssociativeConfig(3*1024, 64, 2, LRU))

		Expect(c).To(BeNil())
		Expect(err).To(MatchError(ErrInvalidGeometry))
	})

	It("should only contain valid presets", func() {
		for _, config := range append(TestConfigs(), AttackConfigs()...) {
			Expect(config.Validate()).To(Succeed(), config.Name)
		}
	})

	It("should parse policy names", func() {
		p, err := ParseReplacementPolicy(" Fifo ")
		Expect(err).ToNot(HaveOccurred())
		Expect(p).To(Equal(FIFO))

		_, err = ParseReplacementPolicy("plru")
		Expect(err).To(HaveOccurred())
	})

	Context("YAML", func() {
		It("should decode a configuration list", func() {
			configs, err := DecodeConfigs(strings.NewReader(`
configs:
  - type: set-associative
    ways: 4
    total_size: 32768
    line_size: 64
    policy: fifo
  - name: tiny
    type: fully-associative
    total_size: 512
    line_size: 64
    policy: random
`))

			Expect(err).ToNot(HaveOccurred())
			Expect(configs).To(HaveLen(2))
			Expect(configs[0].Name).To(Equal("4-way 32KB, 64-byte lines, FIFO"))
			Expect(configs[0].NumSets()).To(Equal(128))
			Expect(configs[1].Policy).To(Equal(Random))
			Expect(configs[1].Associativity()).To(Equal(8))
		})

		It("should reject unknown fields", func() {
			_, err := DecodeConfigs(strings.NewReader(`
configs:
  - type: direct-mapped
    total_size: 1024
    line_size: 64
    wayz: 2
`))

			Expect(err).To(HaveOccurred())
		})

		It("should reject invalid geometry", func() {
			_, err := DecodeConfigs(strings.NewReader(`
configs:
  - type: direct-mapped
    total_size: 1000
    line_size: 64
`))

			Expect(err).To(MatchError(ErrInvalidGeometry))
		})

		It("should load from a file", func() {
			path := filepath.Join(GinkgoT().TempDir(), "caches.yaml")
			Expect(os.WriteFile(path, []byte(`
configs:
  - type: direct-mapped
    total_size: 1024
    line_size: 64
`), 0o644)).To(Succeed())

			configs, err := LoadConfigFile(path)

			Expect(err).ToNot(HaveOccurred())
			Expect(configs[0].NumSets()).To(Equal(16))
		})
	})
})
