// Package prompt derives the short texts that get embedded for a path.
//
// At the Name level a path yields up to three prompts:
//
//	file: annual_report.docx
//	name: annual report
//	extension: docx
//
// At the Paragraphs(n) level a file's text is split on blank lines and
// neighbouring paragraphs are merged pairwise until at most n groups remain.
// Paragraphs(1) embeds the whole text as a single prompt.
//
// Office documents are read from their zipped XML parts; other files are
// read as UTF-8 text.
package prompt
