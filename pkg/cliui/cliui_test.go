package cliui_test

import (
	"bytes"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/cliui"
)

var _ = Describe("Step", func() {
	It("runs fn and reports success", func() {
		var buf bytes.Buffer
		called := false

		err := cliui.Step(&buf, "doing the thing", func() error {
			called = true
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(called).To(BeTrue())
		Expect(buf.String()).To(ContainSubstring("doing the thing"))
	})

	It("propagates fn's error", func() {
		var buf bytes.Buffer
		boom := errors.New("boom")

		err := cliui.Step(&buf, "failing", func() error { return boom })
		Expect(err).To(MatchError(boom))
	})
})

var _ = Describe("FormatDuration", func() {
	It("formats sub-second durations in milliseconds", func() {
		Expect(cliui.FormatDuration(12 * time.Millisecond)).To(Equal("12ms"))
	})

	It("formats longer durations in seconds", func() {
		Expect(cliui.FormatDuration(3200 * time.Millisecond)).To(Equal("3.2s"))
	})
})

var _ = Describe("Mark", func() {
	It("distinguishes success from failure", func() {
		Expect(cliui.Mark(nil)).NotTo(Equal(cliui.Mark(errors.New("x"))))
	})
})
