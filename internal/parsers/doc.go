// Package parsers provides implementations of the WorkbookParser interface
// for interchange formats, and the registry that selects one by file
// extension.
//
// Spreadsheet decoding (xlsx, ods) happens upstream. These parsers read
// documents that already describe sheets, headers, rows and optional
// section hints:
//
//   - jsonwb: the ParsedWorkbook document as JSON
//   - yamlwb: the same document as YAML
//   - csvwb:  a single sheet, sections split on blank rows
package parsers
