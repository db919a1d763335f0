package flipbook

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/flipbook/internal/document/documenttest"
)

const failureText = "Hiba történt a fájl betöltésekor: "

func loaderOptions(await bool) LoaderOptions {
	return LoaderOptions{
		Source:       "konyvem.pdf",
		Sizer:        Sizer{Policy: PolicyViewport, ViewportW: 1000, ViewportH: 600},
		Flip:         FlipOptions{Size: SizeFixed, ShowCover: true, MaxShadowOpacity: 0.5},
		AwaitRenders: await,
		Concurrency:  2,
		FailureText:  failureText,
	}
}

func TestLoadFivePages(t *testing.T) {
	doc := documenttest.New(5, 70, 100)
	opener := &documenttest.Opener{Doc: doc}
	factory := &recordingFactory{}
	ui := &fakeUI{}

	l := NewLoader(opener, factory.New, ui, loaderOptions(true))
	var mu sync.Mutex
	var events []Progress
	l.Observe(func(p Progress) {
		mu.Lock()
		events = append(events, p)
		mu.Unlock()
	})

	book, err := l.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, book.Wait())

	assert.Equal(t, "konyvem.pdf", opener.Path)
	assert.Equal(t, StateReady, l.State())
	done, failed := l.Progress()
	assert.Equal(t, 5, done)
	assert.Zero(t, failed)

	require.Len(t, ui.pages, 5)
	for _, p := range book.Pages {
		assert.True(t, p.Rendered(), "page %d", p.Number)
	}
	assert.True(t, ui.loadingHidden)
	assert.True(t, ui.selectorShown)
	assert.Zero(t, ui.errors)
	assert.True(t, ui.hasStatus("Rendering pages: 0/5"))
	assert.True(t, ui.hasStatus("Rendering pages: 5/5"))

	require.Len(t, events, 5)
	var counts, numbers []int
	for _, ev := range events {
		assert.Equal(t, 5, ev.Total)
		assert.NoError(t, ev.Err)
		counts = append(counts, ev.Done)
		numbers = append(numbers, ev.Page)
	}
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, counts)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, numbers)

	// 1000x600 with page ratio 0.7 fits a 840x600 spread
	assert.InDelta(t, 840, book.Layout.Width, 1e-9)
	assert.InDelta(t, 600, book.Layout.Height, 1e-9)
	require.Len(t, factory.created, 1)
	f := factory.created[0]
	assert.InDelta(t, 420, f.opts.Width, 1e-9)
	assert.InDelta(t, 600, f.opts.Height, 1e-9)
	assert.Equal(t, 5, f.PageCount())
	assert.Same(t, f, book.Flipper)
}

func TestLoadPageFailureIsIsolated(t *testing.T) {
	doc := documenttest.New(5, 70, 100)
	doc.RenderErr[3] = errDecode
	ui := &fakeUI{}
	factory := &recordingFactory{}

	opts := loaderOptions(true)
	opts.Concurrency = 1
	l := NewLoader(&documenttest.Opener{Doc: doc}, factory.New, ui, opts)
	book, err := l.Load(context.Background())
	require.NoError(t, err)

	werr := book.Wait()
	var pe *PageRenderError
	require.ErrorAs(t, werr, &pe)
	assert.Equal(t, 3, pe.Page)

	for _, p := range book.Pages {
		assert.Equal(t, p.Number != 3, p.Rendered(), "page %d", p.Number)
	}
	done, failed := l.Progress()
	assert.Equal(t, 4, done)
	assert.Equal(t, 1, failed)

	// pages 4 and 5 finish after the failure and must not replace the message
	assert.Equal(t, StateReady, l.State())
	assert.Equal(t, "render page 3: decode failure", ui.lastStatus())
	assert.True(t, ui.lastIsError())
	assert.False(t, ui.hasStatus("Rendering pages: 4/5"))
	assert.False(t, ui.loadingHidden)
	assert.True(t, ui.selectorShown)
}

func TestLoadOpenFailure(t *testing.T) {
	ui := &fakeUI{}
	factory := &recordingFactory{}
	opener := &documenttest.Opener{Err: errors.New("no such file")}

	l := NewLoader(opener, factory.New, ui, loaderOptions(true))
	book, err := l.Load(context.Background())
	assert.Nil(t, book)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, StateIdle, le.Stage)
	assert.Equal(t, StateFailed, l.State())

	assert.Nil(t, ui.pages)
	assert.False(t, ui.selectorShown)
	assert.False(t, ui.loadingHidden)
	assert.True(t, ui.lastIsError())
	assert.Equal(t, failureText+"no such file", ui.lastStatus())
	assert.Empty(t, factory.created)
}

func TestLoadInvalidPageCount(t *testing.T) {
	doc := documenttest.New(0, 70, 100)
	ui := &fakeUI{}
	factory := &recordingFactory{}

	l := NewLoader(&documenttest.Opener{Doc: doc}, factory.New, ui, loaderOptions(true))
	_, err := l.Load(context.Background())

	assert.ErrorIs(t, err, ErrInvalidPageCount)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, StateOpened, le.Stage)
	assert.True(t, doc.Closed())
	assert.Nil(t, ui.pages)
	assert.False(t, ui.selectorShown)
}

func TestLoadFlipperRejectsPages(t *testing.T) {
	doc := documenttest.New(2, 70, 100)
	ui := &fakeUI{}
	factory := &recordingFactory{loadErr: errors.New("no canvas")}

	l := NewLoader(&documenttest.Opener{Doc: doc}, factory.New, ui, loaderOptions(true))
	_, err := l.Load(context.Background())

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, StateInitializingFlip, le.Stage)
	assert.True(t, doc.Closed())
	assert.Len(t, ui.pages, 2)
	assert.False(t, ui.selectorShown)
	assert.Zero(t, doc.Renders(1))
}

func TestLoadWithoutAwaitingRenders(t *testing.T) {
	doc := documenttest.New(4, 70, 100)
	release := make(chan struct{})
	doc.RenderHook = func(int) { <-release }
	ui := &fakeUI{}
	factory := &recordingFactory{}

	l := NewLoader(&documenttest.Opener{Doc: doc}, factory.New, ui, loaderOptions(false))
	book, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateReady, l.State())
	assert.True(t, ui.loadingHidden)
	assert.True(t, ui.selectorShown)
	select {
	case <-book.RendersDone():
		t.Fatal("renders finished before release")
	default:
	}

	close(release)
	select {
	case <-book.RendersDone():
	case <-time.After(5 * time.Second):
		t.Fatal("renders did not finish")
	}
	require.NoError(t, book.Wait())
	done, _ := l.Progress()
	assert.Equal(t, 4, done)

	require.NoError(t, book.Close())
	assert.True(t, doc.Closed())
}

func TestBookNewFlipper(t *testing.T) {
	doc := documenttest.New(3, 70, 100)
	factory := &recordingFactory{}

	l := NewLoader(&documenttest.Opener{Doc: doc}, factory.New, &fakeUI{}, loaderOptions(true))
	book, err := l.Load(context.Background())
	require.NoError(t, err)

	f, err := book.NewFlipper(factory.New)
	require.NoError(t, err)
	assert.Equal(t, 3, f.PageCount())
	require.Len(t, factory.created, 2)
	assert.Equal(t, book.Flip, factory.created[1].opts)

	_, err = book.NewFlipper((&recordingFactory{loadErr: errDecode}).New)
	assert.ErrorIs(t, err, errDecode)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "building_surfaces", StateBuildingSurfaces.String())
	assert.Equal(t, "ready", StateReady.String())
	b, err := StateFailed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "failed", string(b))
	assert.Equal(t, "state(42)", State(42).String())
}
