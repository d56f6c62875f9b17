// Package smlio streams SML documents stored as ReliableTXT text files.
//
// Whole documents are read and written with [Load] and [Save]. Large or
// growing files are handled one root child at a time:
//
//	w, err := smlio.CreateWriter(template, "log.sml", smlio.CreateOrAppend, smlio.Options{})
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	err = w.WriteNode(sml.NewStringAttribute("Entry", "started"))
//
//	r, err := smlio.OpenReader("log.sml", smlio.Options{})
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	for {
//	    node, err := r.ReadNode()
//	    if err != nil || node == nil {
//	        break
//	    }
//	}
//
// A writer never rewrites existing content: the root's end line is located
// by scanning backward from the end of the file and new lines are appended
// in its place. Streamed files are always UTF-8 with a byte order mark.
//
// The [Handle] type and the [Header] interface are shared with package bsml,
// which stores the same node model in a binary form.
//
// # Errors
//
// Failures tied to a position in a file are returned as [*Error] carrying
// the path, byte offset and line. Use [errors.Is] with the sentinel errors
// such as [ErrNoPreamble] or [ErrNoEndLine] to tell them apart.
//
// # Concurrency
//
// Readers and writers are not safe for concurrent use. [OpenReaderAsync]
// and [CreateWriterAsync] run each operation on a background goroutine and
// report the result through a [Future].
package smlio
