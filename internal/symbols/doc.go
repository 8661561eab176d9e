// Package symbols builds the flat declaration table of the code index.
//
// An Extractor is a capability-checked strategy: Extract returns the
// records together with whether the extractor could run at all. Callers
// branch only on that flag. An unavailable extractor yields an empty, valid
// symbol index rather than an error.
//
// Extractors:
//   - Ctags: runs Universal Ctags recursively with JSON output. Output is
//     streamed; a deadline bounds the read and a second bound limits how
//     long the process may linger after its output closes. Partial results
//     are kept on timeout.
//   - GoAST: parses Go files with go/parser.
//   - TreeSitter: in-process grammars for Go, Python, JavaScript and
//     TypeScript.
//   - Auto: Ctags when installed, TreeSitter otherwise.
//   - Noop: always unavailable.
//
// Only declarations in text files of the manifest are kept, so symbols
// never reference pruned or oversize files.
package symbols
