// Package engine содержит движок выполнения pipeline.
//
// Включает:
//   - parser.go   — валидация PipelineSpec
//   - dag.go      — построение и обход DAG (directed acyclic graph)
//   - template.go — рендеринг Go templates ({{ .Inputs.branch }})
//
// Engine отвечает за понимание структуры pipeline и определение
// порядка выполнения шагов на основе их зависимостей.
package engine
