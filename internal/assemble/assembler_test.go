package assemble

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/legal-llama/corpus-pipeline/internal/corpus"
)

func TestCompletionScenarioProvenance(t *testing.T) {
	t.Parallel()

	// One 10,000 character document, window 4,000, overlap 10%: three
	// completion records, every one tracing back to the same entry.
	chunker, err := NewChunker(4000, 0.1, TokenizerChars)
	require.NoError(t, err)

	doc := Document{
		EntryID: "ukpga-1988-1",
		Source:  corpus.SourceLegislation,
		Title:   "Income and Corporation Taxes Act 1988",
		Text:    strings.Repeat("s", 10000),
	}
	assembler := New([]Transform{NewCompletionTransform(chunker)}, nil)

	out, err := assembler.Run(context.Background(), []Document{doc})
	require.NoError(t, err)

	records := out.Records[corpus.VariantCompletion]
	require.Len(t, records, 3)
	require.Len(t, records[0].Text, 4000)
	require.Len(t, records[1].Text, 4000)
	require.Len(t, records[2].Text, 2800)
	for i, rec := range records {
		require.Equal(t, "ukpga-1988-1", rec.EntryID)
		require.Equal(t, string(corpus.SourceLegislation), rec.Source)
		require.Equal(t, corpus.VariantCompletion, rec.Variant)
		require.Equal(t, i, rec.Sequence)
		require.Len(t, rec.RecordID, 16)
	}
}

func TestRecordIDsStableAcrossRuns(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(4000, 0.1, TokenizerChars)
	require.NoError(t, err)
	docs := []Document{
		{EntryID: "b-doc", Source: corpus.SourceGovUK, Title: "B", Text: "body of b"},
		{EntryID: "a-doc", Source: corpus.SourceGovUK, Title: "A", Text: "body of a"},
	}
	assembler := New([]Transform{
		NewInstructionTransform(chunker),
		NewCompletionTransform(chunker),
		NewQATransform(),
	}, nil)

	first, err := assembler.Run(context.Background(), docs)
	require.NoError(t, err)
	second, err := assembler.Run(context.Background(), docs)
	require.NoError(t, err)

	for _, variant := range corpus.Variants() {
		require.Equal(t, first.Records[variant], second.Records[variant])
	}
}

func TestVariantsAreIndependent(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(4000, 0.1, TokenizerChars)
	require.NoError(t, err)
	doc := Document{
		EntryID: "vat-notice-700",
		Source:  corpus.SourceGovUK,
		Title:   "VAT Notice 700",
		DocType: "guidance",
		Year:    2023,
		Text:    strings.Repeat("VAT applies to taxable supplies. ", 20),
	}

	full := New([]Transform{
		NewInstructionTransform(chunker),
		NewCompletionTransform(chunker),
	}, nil)
	only := New([]Transform{NewCompletionTransform(chunker)}, nil)

	fullOut, err := full.Run(context.Background(), []Document{doc})
	require.NoError(t, err)
	onlyOut, err := only.Run(context.Background(), []Document{doc})
	require.NoError(t, err)

	require.Equal(t,
		fullOut.Records[corpus.VariantCompletion],
		onlyOut.Records[corpus.VariantCompletion],
	)
}

func TestInstructionTemplates(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(4000, 0.1, TokenizerChars)
	require.NoError(t, err)
	doc := Document{
		EntryID: "ukpga-2010-15",
		Source:  corpus.SourceLegislation,
		Title:   "Equality Act 2010",
		DocType: "ukpga",
		Year:    2010,
		Text:    "An Act to make provision to require Ministers of the Crown to publish information.",
	}

	records := NewInstructionTransform(chunker).Apply(doc)
	require.GreaterOrEqual(t, len(records), 5)
	require.Equal(t, "What is Equality Act 2010?", records[0].Instruction)
	require.Contains(t, records[0].Output, "is a ukpga from 2010")
	require.Contains(t, records[0].Output, doc.Text)
	require.Equal(t, "Explain the content of Equality Act 2010", records[1].Instruction)
	require.Equal(t, doc.Text, records[1].Output)
}

func TestInstructionSectionPromptsForLongDocs(t *testing.T) {
	t.Parallel()

	chunker, err := NewChunker(100, 0.1, TokenizerChars)
	require.NoError(t, err)
	doc := Document{
		EntryID: "long-doc",
		Source:  corpus.SourceBailii,
		Title:   "Long Judgment",
		Text:    strings.Repeat("x", 250),
	}

	records := NewInstructionTransform(chunker).Apply(doc)
	var sections []corpus.TrainingRecord
	for _, rec := range records {
		if strings.HasPrefix(rec.Instruction, "Provide section") {
			sections = append(sections, rec)
		}
	}
	require.Len(t, sections, 3)
	require.Equal(t, "Provide section 1 of Long Judgment", sections[0].Instruction)
}

func TestQATransformStructuralQuestions(t *testing.T) {
	t.Parallel()

	longPara := strings.Repeat("The tribunal held that the appellant was entitled to relief. ", 3)
	doc := Document{
		EntryID: "ewca-2020-1",
		Source:  corpus.SourceBailii,
		Title:   "Smith v HMRC",
		DocType: "judgment",
		Year:    2020,
		Text:    "Heading\n\n" + longPara + "\n\nshort\n\n" + longPara,
	}

	records := NewQATransform().Apply(doc)
	require.Equal(t, "What is the title of this document?", records[0].Question)
	require.Equal(t, "Smith v HMRC", records[0].Answer)
	require.Equal(t, "2020", records[1].Answer)
	require.Equal(t, "judgment", records[2].Answer)

	var sectionQs int
	for _, rec := range records {
		if strings.Contains(rec.Question, "state?") {
			sectionQs++
			require.Equal(t, doc.Text, rec.Context)
		}
	}
	// "Heading" and "short" are below the paragraph threshold.
	require.Equal(t, 2, sectionQs)
}

func TestRunDropsEmptyRecords(t *testing.T) {
	t.Parallel()

	doc := Document{
		EntryID: "untitled",
		Source:  corpus.SourceGovUK,
		// No title, year or type: QA emits nothing; the blank transform
		// below emits an invalid record that must be dropped.
		Text: "some text",
	}
	assembler := New([]Transform{blankTransform{}}, nil)

	out, err := assembler.Run(context.Background(), []Document{doc})
	require.NoError(t, err)
	require.Empty(t, out.Records[corpus.VariantQA])
	require.Equal(t, 1, out.Stats.Dropped[corpus.VariantQA])
	require.Zero(t, out.Stats.Assembled[corpus.VariantQA])
}

type blankTransform struct{}

func (blankTransform) Variant() corpus.Variant { return corpus.VariantQA }

func (blankTransform) Apply(Document) []corpus.TrainingRecord {
	return []corpus.TrainingRecord{{Question: "what?", Answer: "   "}}
}
