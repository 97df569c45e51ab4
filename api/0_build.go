package api

import (
	"context"
	"net/http"

	"github.com/fulldump/box"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fulldump/objectstore/store"
)

func Build(s *store.Store, gatherer prometheus.Gatherer, version string) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1")
	v1.WithInterceptors(
		injectStore(s),
	)

	v1.Resource("/items").
		WithInterceptors(
			box.SetResponseHeader("Content-Type", "application/json"),
		).
		WithActions(
			box.Get(listItems),
			box.ActionPost(addItems).WithName("add"),
			box.ActionPost(putItems).WithName("put"),
			box.ActionPost(patchItems).WithName("patch"),
			box.ActionPost(deleteItems).WithName("delete"),
			box.ActionPost(findItems).WithName("find"),
		)

	v1.Resource("/items/{id}").
		WithInterceptors(
			box.SetResponseHeader("Content-Type", "application/json"),
		).
		WithActions(
			box.Get(getItem),
		)

	v1.Resource("/changes").
		WithActions(
			box.Get(streamChanges),
		)

	metrics := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	b.Resource("/metrics").
		WithActions(
			box.Get(metrics.ServeHTTP).WithName("metrics"),
		)

	b.Resource("/release").
		WithActions(box.Get(func() string {
			return version
		}))

	b.Resource("/*").
		WithActions(box.AnyMethod(func(w http.ResponseWriter) any {
			w.WriteHeader(http.StatusNotImplemented)
			return PrettyError{
				Message:     "not implemented",
				Description: "this endpoint does not exist, please check the documentation",
			}
		}))

	return b
}

const contextStoreKey = "7b1e52c4-objectstore-store"

func injectStore(s *store.Store) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(context.WithValue(ctx, contextStoreKey, s))
		}
	}
}

func getStore(ctx context.Context) *store.Store {
	return ctx.Value(contextStoreKey).(*store.Store)
}
