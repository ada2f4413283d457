package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	positions []string
}

func (h *countingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos.Name)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = &HookableBase{}
		pos = &HookPos{Name: "Somewhere"}
	})

	It("should invoke hooks in registration order", func() {
		var order []int
		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 1) }))
		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 2) }))

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(order).To(Equal([]int{1, 2}))
		Expect(base.NumHooks()).To(Equal(2))
	})

	It("should pass the context through", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})
		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(h.positions).To(Equal([]string{"Somewhere", "Somewhere"}))
	})

	It("should panic on duplicated hooks", func() {
		h := &countingHook{}
		base.AcceptHook(h)

		Expect(func() { base.AcceptHook(h) }).To(Panic())
	})

	It("should return a copy of the hook list", func() {
		base.AcceptHook(&countingHook{})

		hooks := base.Hooks()
		hooks[0] = nil

		Expect(base.Hooks()[0]).NotTo(BeNil())
	})
})
