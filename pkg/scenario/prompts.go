package scenario

// Prompt templates for the four-stage generation workflow. Placeholders
// are filled with fmt.Sprintf in pipeline order.

const visionAnalysisPrompt = `You are analyzing frames sampled evenly from a short vertical video.
Describe what happens on screen: the setting, people, actions, text overlays,
transitions and pacing. Focus on what makes the video engaging in its first
three seconds and how the visual story develops. Answer as a concise analysis
a content producer could act on.`

const originalScenarioPrompt = `Reconstruct the scenario of a short vertical video from its visual
analysis. Write it as a shooting script: hook (first 3 seconds), scene-by-scene
beats with timings, on-screen text, and the closing call to action.

Visual analysis:
%s

Audio transcript:
%s`

const variantScenarioPrompt = `Create a fresh variant of the scenario below. Keep the structure and
pacing that make it work, but change the setting, angle or framing device so
the result is a new video, not a copy. Keep the same script format.

Original scenario:
%s

Visual analysis:
%s`

const personalizedScenarioPrompt = `Adapt the scenarios below to the author's own niche and audience,
described in their profile context. Keep the proven hook and pacing; replace
topics, examples and wording so the video fits their content. Keep the same
script format.

Original scenario:
%s

Variant scenario:
%s

Author context:
%s`
