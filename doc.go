// Package office2png converts office documents to PNG images, one file per page.
//
// # Quick Start
//
// Create a converter, convert a document, and close when done:
//
//	conv, err := office2png.NewConverter()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer conv.Close()
//
//	result, err := conv.Convert(ctx, "report.docx", "out/")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.OutputPaths) // [out/report_001.png out/report_002.png]
//
// A single-page document produces out/report.png without a page suffix.
//
// # Conversion Pipeline
//
// Each document moves through a fixed sequence of stages:
//
//  1. Queued: input validated (existence, supported extension)
//  2. Converting: a pool worker runs LibreOffice to export a PDF
//  3. Rendering: MuPDF (go-fitz) rasterizes every page at the resolved DPI
//  4. Completed, or Failed from any earlier stage
//
// The worker is held only during stage 2, so rendering of one document
// overlaps with conversion of the next. Pages are written under a temporary
// name and renamed once complete; a failed or aborted document leaves no
// pages behind.
//
// # Configuration
//
// Use functional options to customize the converter:
//
//	conv, err := office2png.NewConverter(
//	    office2png.WithPoolSize(4),
//	    office2png.WithDPI(150),
//	    office2png.WithConvertTimeout(2 * time.Minute),
//	    office2png.WithLogger(logger),
//	)
//
// Per-call options override the defaults:
//
//	result, err := conv.Convert(ctx, "sheet.xlsx", "out/",
//	    office2png.WithDPIOverride(72),
//	    office2png.WithPrefix("q3"),
//	)
//
// # Batch Conversion
//
// ConvertBatch runs up to PoolSize documents at once, in input order, and
// never fails as a whole because one document failed:
//
//	res, err := conv.ConvertBatch(ctx, inputs, "out/",
//	    office2png.WithProgress(func(p office2png.ConversionProgress) {
//	        fmt.Printf("%s: %s %d/%d\n", p.CurrentFile, p.Stage, p.PagesCompleted, p.TotalPages)
//	    }),
//	)
//
// Progress callbacks are never invoked concurrently. Cancelling ctx stops
// admission of new documents; WithCancelMode(CancelAbort) also kills
// documents already in flight.
//
// # Worker Pool
//
// Each worker owns a LibreOffice user profile, which is what allows several
// soffice processes to run side by side. A worker whose process is killed,
// times out or stops answering is replaced in the background with
// exponential backoff; after repeated spawn failures the pool reports itself
// degraded through Health. Workers are also recycled after
// WithMaxDocsPerWorker documents.
//
// # Toolchain Requirements
//
// LibreOffice must be installed. The binary is found from WithSofficePath,
// then well-known install locations, then soffice or libreoffice in $PATH.
// Rendering links MuPDF through cgo (github.com/gen2brain/go-fitz).
package office2png
