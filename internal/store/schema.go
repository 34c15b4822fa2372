package store

// Schema is the subset of the operational schema the extraction queries read.
// The seed script and the integration tests create it in scratch databases.
const Schema = `
CREATE TABLE IF NOT EXISTS tenants (
    id          UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    slug        TEXT NOT NULL,
    status      TEXT,
    plan        TEXT,
    timezone    TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS users (
    id             UUID PRIMARY KEY,
    tenant_id      UUID NOT NULL REFERENCES tenants(id),
    user_type      TEXT NOT NULL,
    first_name     TEXT,
    last_name      TEXT,
    email          TEXT,
    date_of_birth  DATE,
    gender         TEXT,
    state          TEXT,
    postcode       TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at     TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS appointments (
    id               UUID PRIMARY KEY,
    tenant_id        UUID NOT NULL REFERENCES tenants(id),
    patient_id       UUID NOT NULL REFERENCES users(id),
    scheduled_start  TIMESTAMPTZ NOT NULL,
    status           TEXT NOT NULL,
    notes            TEXT,
    deleted_at       TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS messages (
    id          UUID PRIMARY KEY,
    tenant_id   UUID NOT NULL REFERENCES tenants(id),
    body        TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS documents (
    id          UUID PRIMARY KEY,
    tenant_id   UUID NOT NULL REFERENCES tenants(id),
    file_name   TEXT,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    deleted_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS treatment_plans (
    id                  UUID PRIMARY KEY,
    tenant_id           UUID NOT NULL REFERENCES tenants(id),
    patient_id          UUID NOT NULL REFERENCES users(id),
    condition_category  TEXT,
    treatment_type      TEXT,
    status              TEXT NOT NULL,
    start_date          TIMESTAMPTZ NOT NULL,
    deleted_at          TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS prom_templates (
    id   UUID PRIMARY KEY,
    key  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS prom_instances (
    id                 UUID PRIMARY KEY,
    tenant_id          UUID NOT NULL REFERENCES tenants(id),
    patient_id         UUID NOT NULL REFERENCES users(id),
    treatment_plan_id  UUID REFERENCES treatment_plans(id),
    template_id        UUID NOT NULL REFERENCES prom_templates(id),
    instance_type      TEXT NOT NULL,
    status             TEXT NOT NULL,
    score              NUMERIC(6,2),
    completed_at       TIMESTAMPTZ,
    deleted_at         TIMESTAMPTZ
);
`
