package downstream

import (
	"github.com/jdziat/distexec/pkg/core"
)

// Consumer receives the final outcome of a Context.
type Consumer interface {
	Finish(b core.Bucket)
	Fail(err error)
}

// ConsumerFuncs adapts two functions to Consumer. Nil functions are skipped.
type ConsumerFuncs struct {
	OnFinish func(core.Bucket)
	OnFail   func(error)
}

func (c ConsumerFuncs) Finish(b core.Bucket) {
	if c.OnFinish != nil {
		c.OnFinish(b)
	}
}

func (c ConsumerFuncs) Fail(err error) {
	if c.OnFail != nil {
		c.OnFail(err)
	}
}

// PageConsumeListener is signalled after a page of a source was consumed.
type PageConsumeListener interface {
	// NeedMore requests the next page from the source.
	NeedMore()
	// Finish tells the source no more data is needed.
	Finish()
}

// ListenerFuncs adapts two functions to PageConsumeListener.
type ListenerFuncs struct {
	OnNeedMore func()
	OnFinish   func()
}

func (l ListenerFuncs) NeedMore() {
	if l.OnNeedMore != nil {
		l.OnNeedMore()
	}
}

func (l ListenerFuncs) Finish() {
	if l.OnFinish != nil {
		l.OnFinish()
	}
}

// DirectListener is used for buckets embedded in a job response. Such a
// source cannot be paged, so NeedMore degrades to Finish.
type DirectListener struct {
	OnFinish func()
}

func (l DirectListener) NeedMore() {
	l.Finish()
}

func (l DirectListener) Finish() {
	if l.OnFinish != nil {
		l.OnFinish()
	}
}

type noopListener struct{}

func (noopListener) NeedMore() {}
func (noopListener) Finish()   {}
