// Package builder turns a build context directory into a pushed container
// image. Docker shells out to the docker CLI; Func adapts any function for
// tests or delegated pipelines.
package builder
