package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Reference tables
			CREATE TABLE visa_types (
				id INTEGER PRIMARY KEY,
				code VARCHAR(32) NOT NULL,
				name VARCHAR(255) NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT true
			);

			CREATE UNIQUE INDEX idx_visa_types_code ON visa_types(UPPER(code));

			CREATE TABLE country_service_mappings (
				service VARCHAR(64) NOT NULL,
				from_country CHAR(2) NOT NULL,
				to_country CHAR(2) NOT NULL,
				notes TEXT NOT NULL DEFAULT '',
				PRIMARY KEY (service, from_country)
			);

			CREATE TABLE reviewers (
				id VARCHAR(255) PRIMARY KEY,
				email VARCHAR(255) NOT NULL DEFAULT '',
				name VARCHAR(255) NOT NULL DEFAULT ''
			);

			-- Raw captures, content addressed
			CREATE TABLE raw_captures (
				id UUID PRIMARY KEY,
				source VARCHAR(64) NOT NULL,
				country_code CHAR(2) NOT NULL,
				visa_type_code VARCHAR(32) NOT NULL,
				url TEXT NOT NULL,
				fetched_at TIMESTAMP WITH TIME ZONE NOT NULL,
				content_type VARCHAR(255) NOT NULL,
				headers JSONB NOT NULL DEFAULT '{}',
				body TEXT NOT NULL,
				fingerprint CHAR(64) NOT NULL
			);

			CREATE UNIQUE INDEX idx_raw_captures_fingerprint ON raw_captures(fingerprint);
			CREATE INDEX idx_raw_captures_lookup ON raw_captures(country_code, visa_type_code, source);
			CREATE INDEX idx_raw_captures_fetched_at ON raw_captures(fetched_at);
		`,
		2: `
			-- Workflow versions with their steps and doctors
			CREATE TABLE workflow_versions (
				id UUID PRIMARY KEY,
				visa_type_id INTEGER NOT NULL REFERENCES visa_types(id),
				country_code CHAR(2) NOT NULL,
				version INTEGER NOT NULL,
				status VARCHAR(32) NOT NULL CHECK (status IN ('pending_approval', 'approved', 'rejected')),
				source VARCHAR(64) NOT NULL,
				scrape_hash CHAR(64) NOT NULL,
				scraped_at TIMESTAMP WITH TIME ZONE NOT NULL,
				approved_by VARCHAR(255),
				approved_at TIMESTAMP WITH TIME ZONE,
				rejected_by VARCHAR(255),
				rejected_at TIMESTAMP WITH TIME ZONE,
				notes TEXT NOT NULL DEFAULT '',
				summary JSONB NOT NULL DEFAULT '{}',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE UNIQUE INDEX idx_workflow_versions_approved_version
				ON workflow_versions(visa_type_id, country_code, version)
				WHERE status = 'approved';
			CREATE UNIQUE INDEX idx_workflow_versions_pending_hash
				ON workflow_versions(visa_type_id, country_code, scrape_hash)
				WHERE status = 'pending_approval';
			CREATE INDEX idx_workflow_versions_status ON workflow_versions(status, scraped_at DESC);

			CREATE TABLE workflow_steps (
				id UUID PRIMARY KEY,
				workflow_version_id UUID NOT NULL REFERENCES workflow_versions(id) ON DELETE CASCADE,
				ordinal INTEGER NOT NULL,
				key VARCHAR(255) NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				data JSONB NOT NULL DEFAULT '{}',
				CONSTRAINT uq_workflow_steps_ordinal UNIQUE (workflow_version_id, ordinal),
				CONSTRAINT uq_workflow_steps_key UNIQUE (workflow_version_id, key)
			);

			CREATE TABLE workflow_doctors (
				id UUID PRIMARY KEY,
				workflow_version_id UUID NOT NULL REFERENCES workflow_versions(id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				address TEXT NOT NULL DEFAULT '',
				phone TEXT NOT NULL DEFAULT '',
				city TEXT NOT NULL DEFAULT '',
				country_code CHAR(2) NOT NULL,
				source_url TEXT NOT NULL DEFAULT '',
				extras JSONB NOT NULL DEFAULT '{}'
			);

			CREATE INDEX idx_workflow_doctors_version ON workflow_doctors(workflow_version_id);
			CREATE INDEX idx_workflow_doctors_country ON workflow_doctors(country_code);
		`,
		3: `
			-- Per-recipient digest queue
			CREATE TABLE digest_queue_entries (
				id UUID PRIMARY KEY,
				recipient_id VARCHAR(255) NOT NULL,
				items JSONB,
				last_sent_at TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_digest_queue_entries_recipient ON digest_queue_entries(recipient_id);
			CREATE INDEX idx_digest_queue_entries_last_sent_at ON digest_queue_entries(last_sent_at);
		`,
	}
}
