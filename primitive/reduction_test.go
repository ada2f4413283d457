package primitive

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Reductions", func() {
	values := []float64{20, 10, 40}

	It("should compute the mean", func() {
		Expect(Mean([]float64{10, 20})).To(Equal(15.0))
		Expect(Mean([]float64{7})).To(Equal(7.0))
	})

	It("should compute the median", func() {
		Expect(Median(values)).To(Equal(20.0))
		Expect(Median([]float64{1, 4, 2, 3})).To(Equal(2.5))
	})

	It("should not reorder the input of the median", func() {
		in := []float64{3, 1, 2}
		Median(in)
		Expect(in).To(Equal([]float64{3, 1, 2}))
	})

	It("should compute max, min and last", func() {
		Expect(Max(values)).To(Equal(40.0))
		Expect(Min(values)).To(Equal(10.0))
		Expect(Last(values)).To(Equal(40.0))
	})

	It("should look reductions up by name", func() {
		r, err := ReductionByName("median")
		Expect(err).NotTo(HaveOccurred())
		Expect(r(values)).To(Equal(20.0))

		r, err = ReductionByName("")
		Expect(err).NotTo(HaveOccurred())
		Expect(r([]float64{10, 20})).To(Equal(15.0))

		_, err = ReductionByName("mode")
		Expect(err).To(MatchError(ErrInvalidConfig))
	})
})
